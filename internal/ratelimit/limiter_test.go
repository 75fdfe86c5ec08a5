package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacer_ZeroDelayNeverBlocks(t *testing.T) {
	p := NewPacer(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.Zero(t, p.Delay())
}

func TestNewPacer_EnforcesDelay(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPacer_WaitHonorsContext(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, p.Wait(ctx))
}

func TestPacer_Allow(t *testing.T) {
	p := NewPacer(time.Hour)

	assert.True(t, p.Allow())
	assert.False(t, p.Allow())
}

func TestPacer_SetDelay(t *testing.T) {
	p := NewPacer(time.Hour)
	p.Allow()

	p.SetDelay(0)
	assert.Zero(t, p.Delay())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, p.Wait(ctx))
}
