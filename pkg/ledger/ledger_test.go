package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedger(t *testing.T) {
	l := New()
	assert.False(t, l.Seen("alice|hi"))

	l.Record("alice|hi")
	l.Record("alice|hi")
	assert.True(t, l.Seen("alice|hi"))
	assert.Equal(t, 1, l.Len())
}

func TestAdmit(t *testing.T) {
	l := New()

	assert.True(t, l.Admit("a"))
	assert.False(t, l.Admit("a"))
	assert.True(t, l.Admit("b"))
	assert.Equal(t, 2, l.Len())
}
