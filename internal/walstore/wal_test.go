package walstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWALAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	w, err := openWAL(filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	defer w.close()

	for i := uint64(1); i <= 3; i++ {
		err := w.append(Entry{Offset: i, Op: OpPut, Key: "k", Value: json.RawMessage(`"v"`), Ts: 1.0})
		require.NoError(t, err)
	}

	entries, err := w.readAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		require.Equal(t, uint64(i+1), e.Offset)
	}
}

func TestWALSkipsTornTrailingLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	w, err := openWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.append(Entry{Offset: 1, Op: OpPut, Key: "k", Value: json.RawMessage(`1`), Ts: 1}))
	require.NoError(t, w.close())

	// Simulate a crash mid-write: append a truncated JSON line.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"offset":2,"op":"PUT","key":"k2","value":`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := openWAL(path)
	require.NoError(t, err)
	defer w2.close()
	entries, err := w2.readAll()
	require.NoError(t, err)
	require.Len(t, entries, 1, "torn trailing line must be skipped silently")
}

func TestWALTruncate(t *testing.T) {
	dir := t.TempDir()
	w, err := openWAL(filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	defer w.close()
	require.NoError(t, w.append(Entry{Offset: 1, Op: OpPut, Key: "k", Value: json.RawMessage(`1`), Ts: 1}))
	require.NoError(t, w.truncate())

	entries, err := w.readAll()
	require.NoError(t, err)
	require.Empty(t, entries)
}
