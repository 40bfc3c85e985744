// Package goroutine runs named background jobs, such as broker consumers,
// under a concurrency cap and collects their failures for shutdown.
package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpauth/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager gets a
// non-positive limit.
const DefaultMaxGoroutine int = 100

var (
	// ErrClosed is recorded when Go is called after Wait.
	ErrClosed = errors.New("goroutine: manager is closed")
	// ErrLimitReached is recorded when every slot is taken.
	ErrLimitReached = errors.New("goroutine: maximum goroutine limit reached")
)

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
	Stack []string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Manager runs jobs in goroutines. Each failure, including a job that could
// not start, is kept and returned by Wait tagged with the job name.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	running map[string]int
	wg      sync.WaitGroup
	sema    chan struct{}
	closed  bool
}

// NewManager creates a Manager that runs at most maxGoroutine jobs at once.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{
		running: make(map[string]int),
		sema:    make(chan struct{}, maxGoroutine),
	}
}

// Go starts f in a goroutine. f receives pCtx and is expected to return once
// pCtx is done.
func (g *Manager) Go(pCtx context.Context, name string, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		slog.WarnContext(pCtx, "goroutine manager is closed, skipping new goroutine", "job", name)
		g.errs = append(g.errs, fmt.Errorf("%s: %w", name, ErrClosed))
		return
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(pCtx, "Maximum goroutine limit reached, failed to start new goroutine", "job", name)
		g.errs = append(g.errs, fmt.Errorf("%s: %w", name, ErrLimitReached))
		return
	}

	g.running[name]++
	g.wg.Go(func() {
		err := g.run(pCtx, name, f)

		g.mu.Lock()
		defer g.mu.Unlock()
		<-g.sema
		if g.running[name]--; g.running[name] == 0 {
			delete(g.running, name)
		}
		if err != nil {
			g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
		}
	})
}

func (g *Manager) run(ctx context.Context, name string, f func(ctx context.Context) error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			paths := stacktrace.InternalPaths(stack)
			slog.ErrorContext(ctx, "panic occurred in goroutine", "job", name, "panic", rvr, "stack", paths)
			err = &PanicError{Value: rvr, Stack: paths}
		}
	}()

	if ctx.Err() != nil {
		slog.WarnContext(ctx, "goroutine canceled before start", "job", name, "because", ctx.Err())
		return nil
	}

	err = f(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Running reports how many goroutines are active under name.
func (g *Manager) Running(name string) int {
	if g == nil {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.running[name]
}

// Wait stops accepting jobs, blocks until every job returns and reports the
// collected errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}
