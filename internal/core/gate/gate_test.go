package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// scriptedInit fails the first n calls.
type scriptedInit struct {
	failures int
	calls    int
}

func (s *scriptedInit) Initialize(context.Context) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("catalog offline")
	}
	return nil
}

func TestStartDrainsFIFO(t *testing.T) {
	g := New(&scriptedInit{}, nil, zap.NewNop())
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		g.Enqueue(func() { order = append(order, i) })
	}
	assert.Empty(t, order, "nothing runs before the bootstrap")
	assert.Equal(t, 3, g.Pending())

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, StateDone, g.State())
	assert.Equal(t, 0, g.Pending())
	assert.Equal(t, 3, g.Drained())

	select {
	case <-g.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestEnqueueAfterDoneRunsInline(t *testing.T) {
	g := New(&scriptedInit{}, nil, zap.NewNop())
	require.NoError(t, g.Start(context.Background()))

	ran := false
	g.Enqueue(func() { ran = true })
	assert.True(t, ran, "callback should run before Enqueue returns")
	assert.Equal(t, 0, g.Pending())
}

func TestStartIsIdempotent(t *testing.T) {
	ci := &scriptedInit{}
	g := New(ci, nil, zap.NewNop())
	calls := 0
	g.Enqueue(func() { calls++ })

	require.NoError(t, g.Start(context.Background()))
	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, 1, ci.calls)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, g.Attempts())
}

func TestRetryAfterFailureDrainsEverything(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	g := New(&scriptedInit{failures: 1}, nil, zap.New(core))

	var order []string
	g.Enqueue(func() { order = append(order, "before") })

	err := g.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBootstrap)
	assert.Equal(t, StateNone, g.State())
	assert.Empty(t, order)
	assert.Equal(t, 1, logs.FilterMessage("bootstrap failed").Len())

	g.Enqueue(func() { order = append(order, "after") })
	assert.Equal(t, 2, g.Pending())

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, []string{"before", "after"}, order)
	assert.Equal(t, StateDone, g.State())
	assert.Equal(t, 2, g.Attempts())
}

func TestConfigureFailureResets(t *testing.T) {
	fail := true
	g := New(&scriptedInit{}, func(context.Context, func(func())) error {
		if fail {
			return errors.New("bad script")
		}
		return nil
	}, zap.NewNop())

	err := g.Start(context.Background())
	require.ErrorIs(t, err, ErrBootstrap)
	assert.Contains(t, err.Error(), "bad script")
	assert.Equal(t, StateNone, g.State())

	fail = false
	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, StateDone, g.State())
}

func TestConfigureEnqueuesAfterExisting(t *testing.T) {
	var order []string
	g := New(&scriptedInit{}, func(_ context.Context, enqueue func(func())) error {
		enqueue(func() { order = append(order, "configured") })
		return nil
	}, zap.NewNop())
	g.Enqueue(func() { order = append(order, "queued") })

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, []string{"queued", "configured"}, order)
}

func TestFailedConfigureDropsItsCallbacks(t *testing.T) {
	attempt := 0
	runs := 0
	g := New(&scriptedInit{}, func(_ context.Context, enqueue func(func())) error {
		attempt++
		enqueue(func() { runs++ })
		if attempt == 1 {
			return errors.New("bad script")
		}
		return nil
	}, zap.NewNop())

	require.ErrorIs(t, g.Start(context.Background()), ErrBootstrap)
	assert.Equal(t, 0, g.Pending())

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, StateDone, g.State())
	assert.Equal(t, 1, runs, "callback from the failed attempt must not run")
}

func TestCallbackPanicIsIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	g := New(&scriptedInit{}, nil, zap.New(core))

	var order []int
	g.Enqueue(func() { order = append(order, 1) })
	g.Enqueue(func() { panic("broken callback") })
	g.Enqueue(func() { order = append(order, 3) })

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, []int{1, 3}, order)
	assert.Equal(t, 1, logs.FilterMessage("queued callback panicked").Len())
}

func TestCallbackEnqueuedDuringDrain(t *testing.T) {
	var g *Gate
	g = New(&scriptedInit{}, nil, zap.NewNop())
	var order []string
	g.Enqueue(func() {
		order = append(order, "outer")
		g.Enqueue(func() { order = append(order, "inner") })
	})
	g.Enqueue(func() { order = append(order, "second") })

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, []string{"outer", "second", "inner"}, order)
}

func TestWaitInsideDrainDoesNotBlock(t *testing.T) {
	var g *Gate
	g = New(&scriptedInit{}, nil, zap.NewNop())
	var waitErr error
	g.Enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		waitErr = g.Wait(ctx)
	})
	require.NoError(t, g.Start(context.Background()))
	assert.NoError(t, waitErr)
}

func TestWaitHonoursContext(t *testing.T) {
	g := New(&scriptedInit{}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.Canceled)
}

func TestWaitReleasesAfterStart(t *testing.T) {
	g := New(&scriptedInit{}, nil, zap.NewNop())
	released := make(chan error, 1)
	go func() { released <- g.Wait(context.Background()) }()

	require.NoError(t, g.Start(context.Background()))
	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after bootstrap")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "none", StateNone.String())
	assert.Equal(t, "progressing", StateProgressing.String())
	assert.Equal(t, "done", StateDone.String())
}
