package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the bootstrap progress. None→Progressing→Done, or back to None
// when a bootstrap fails.
type State int32

const (
	StateNone State = iota
	StateProgressing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateProgressing:
		return "progressing"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var ErrBootstrap = errors.New("bootstrap failed")

// Initializer brings up the asset catalog. *catalog.Catalog implements it.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Configurer runs after the catalog is up and before queued work drains.
// Callbacks passed to enqueue are held until configure returns: on success
// they drain after the ones already queued, on failure they are dropped so
// a retried bootstrap does not run them twice. enqueue must not be called
// after configure returns.
type Configurer func(ctx context.Context, enqueue func(fn func())) error

// Gate holds asset-dependent work until a one-time bootstrap completes.
// Safe for concurrent use.
type Gate struct {
	init      Initializer
	configure Configurer
	log       *zap.Logger

	mu       sync.Mutex
	state    State
	queue    []func()
	attempts int
	drained  int
	ready    chan struct{} // closed once a bootstrap succeeds, before the drain
	done     chan struct{} // closed when state becomes Done
}

// New creates a gate. configure may be nil.
func New(initializer Initializer, configure Configurer, log *zap.Logger) *Gate {
	return &Gate{
		init:      initializer,
		configure: configure,
		log:       log,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Done is closed once the queue has drained and the state is Done.
func (g *Gate) Done() <-chan struct{} { return g.done }

// Attempts returns how many bootstraps have been started.
func (g *Gate) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

// Drained returns how many callbacks the successful bootstrap ran.
func (g *Gate) Drained() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drained
}

// Pending returns the number of queued callbacks.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Start runs the bootstrap and blocks until it resolves. It is a no-op
// unless the state is None. On failure the state returns to None, queued
// callbacks are kept, and the error wraps ErrBootstrap.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateNone {
		g.mu.Unlock()
		return nil
	}
	g.state = StateProgressing
	g.attempts++
	attempt := g.attempts
	g.mu.Unlock()

	log := g.log.With(zap.Int("attempt", attempt), zap.String("bootstrap_id", uuid.NewString()))
	log.Info("bootstrap started")

	if err := g.init.Initialize(ctx); err != nil {
		return g.fail(log, fmt.Errorf("%w: initialize catalog: %w", ErrBootstrap, err), 0)
	}
	if g.configure != nil {
		var staged []func()
		stage := func(fn func()) {
			if fn != nil {
				staged = append(staged, fn)
			}
		}
		if err := g.configure(ctx, stage); err != nil {
			return g.fail(log, fmt.Errorf("%w: configure: %w", ErrBootstrap, err), len(staged))
		}
		g.mu.Lock()
		g.queue = append(g.queue, staged...)
		g.mu.Unlock()
	}

	close(g.ready)
	drained := g.drain(log)
	g.mu.Lock()
	g.drained = drained
	g.mu.Unlock()
	log.Info("bootstrap done", zap.Int("drained", drained))
	return nil
}

func (g *Gate) fail(log *zap.Logger, err error, dropped int) error {
	g.mu.Lock()
	g.state = StateNone
	pending := len(g.queue)
	g.mu.Unlock()
	log.Error("bootstrap failed", zap.Error(err), zap.Int("pending", pending), zap.Int("dropped", dropped))
	return err
}

// drain runs queued callbacks in FIFO order. Callbacks enqueued while
// draining are picked up by the next pass; Done is only set once the queue
// is observed empty under the lock.
func (g *Gate) drain(log *zap.Logger) int {
	n := 0
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.state = StateDone
			close(g.done)
			g.mu.Unlock()
			return n
		}
		batch := g.queue
		g.queue = nil
		g.mu.Unlock()

		for _, fn := range batch {
			g.run(log, fn)
			n++
		}
	}
}

func (g *Gate) run(log *zap.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("queued callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Enqueue runs fn inline when the state is Done, otherwise queues it for
// the drain.
func (g *Gate) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	if g.state != StateDone {
		g.queue = append(g.queue, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn()
}

// Wait blocks until a bootstrap has succeeded. Callbacks running inside the
// drain may therefore call Wait without deadlocking. Returns ctx.Err() if
// ctx ends first; the bootstrap itself is unaffected.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	default:
	}
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
