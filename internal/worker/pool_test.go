package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsEveryTask(t *testing.T) {
	p := NewPool(3, 10)
	results := p.Run(context.Background())

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		p.Submit(func(context.Context) error {
			n.Add(1)
			return nil
		})
	}
	p.Close()

	require.NoError(t, Drain(results))
	assert.Equal(t, int32(10), n.Load())
}

func TestPool_IntervalSpacesStarts(t *testing.T) {
	p := NewPool(1, 3)
	p.SetInterval(40 * time.Millisecond)
	results := p.Run(context.Background())

	var mu sync.Mutex
	var starts []time.Time
	for i := 0; i < 3; i++ {
		p.Submit(func(context.Context) error {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return nil
		})
	}
	p.Close()
	require.NoError(t, Drain(results))

	require.Len(t, starts, 3)
	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, starts[2].Sub(starts[1]), 30*time.Millisecond)
}

func TestPool_DrainReturnsFirstError(t *testing.T) {
	p := NewPool(1, 2)
	results := p.Run(context.Background())
	boom := errors.New("boom")
	p.Submit(func(context.Context) error { return boom })
	p.Submit(func(context.Context) error { return errors.New("later") })
	p.Close()

	assert.ErrorIs(t, Drain(results), boom)
}

func TestPool_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(1, 2)
	p.SetInterval(time.Hour)
	results := p.Run(ctx)

	var ran atomic.Int32
	p.Submit(func(context.Context) error { ran.Add(1); return nil })
	p.Submit(func(context.Context) error { ran.Add(1); return nil })
	p.Close()

	require.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	_ = Drain(results)
	assert.Equal(t, int32(1), ran.Load())
}
