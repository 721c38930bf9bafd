package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacerBurstThenBlocks(t *testing.T) {
	p := NewPacer(time.Hour, 2)

	assert.True(t, p.Allow())
	assert.True(t, p.Allow())
	assert.False(t, p.Allow(), "burst exhausted")

	p.Reset()
	assert.True(t, p.Allow(), "reset refills")
}

func TestPacerWaitSpacesRequests(t *testing.T) {
	p := NewPacer(30*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		assert.NoError(t, p.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPacerWaitCancelled(t *testing.T) {
	p := NewPacer(time.Hour, 1)
	assert.True(t, p.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestPacerDisabled(t *testing.T) {
	p := NewPacer(0, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, p.Allow())
	}
	assert.Equal(t, time.Duration(0), p.Interval())
}
