package tabledir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateAndExists(t *testing.T) {
	r := New()
	assert.False(t, r.Exists("orders"))
	r.Create("orders")
	assert.True(t, r.Exists("orders"))
}

func TestRecreateIsNoOp(t *testing.T) {
	r := New()
	r.Create("orders")
	r.Create("orders")
	assert.True(t, r.Exists("orders"))
}

func TestUnknownTableNotExists(t *testing.T) {
	r := New()
	assert.False(t, r.Exists("unknown"))
}
