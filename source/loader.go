package source

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DecodeFunc turns fetched bytes into a render-ready value. It runs off the
// render thread and must not touch GPU state.
type DecodeFunc[T any] func(data []byte) (T, error)

// Completion is the outcome of one Load.
type Completion[T any] struct {
	Seq     uint64
	URL     string
	Value   T
	Err     error
	Elapsed time.Duration
}

// Loader runs fetch+decode jobs in the background and hands the results back
// to the render thread through Poll or Await. Every Load is tagged with an
// increasing sequence number; completions of superseded loads are dropped.
type Loader[T any] struct {
	name    string
	fetcher Fetcher
	logger  *slog.Logger
	timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	results chan Completion[T]
	wg      sync.WaitGroup

	mu        sync.Mutex
	latest    uint64
	delivered uint64
	closed    bool
}

// NewLoader creates a loader. A zero timeout means no per-load deadline.
func NewLoader[T any](name string, fetcher Fetcher, timeout time.Duration, logger *slog.Logger) *Loader[T] {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader[T]{
		name:    name,
		fetcher: fetcher,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		results: make(chan Completion[T], 8),
	}
}

// Load starts fetching url and returns the sequence number assigned to it.
// Returns 0 if the loader is closed.
func (l *Loader[T]) Load(url string, decode DecodeFunc[T]) uint64 {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	l.latest++
	seq := l.latest
	l.wg.Add(1)
	l.mu.Unlock()

	go l.run(seq, url, decode)
	return seq
}

func (l *Loader[T]) run(seq uint64, url string, decode DecodeFunc[T]) {
	defer l.wg.Done()

	ctx := l.ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	c := Completion[T]{Seq: seq, URL: url}
	data, err := l.fetcher.Fetch(ctx, url)
	if err == nil {
		c.Value, err = decode(data)
	}
	c.Err = err
	c.Elapsed = time.Since(start)

	select {
	case l.results <- c:
	case <-l.ctx.Done():
	}
}

// Latest returns the sequence number of the most recent Load.
func (l *Loader[T]) Latest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// Pending reports whether the most recent Load has not been delivered yet.
func (l *Loader[T]) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delivered < l.latest
}

// Poll returns the completion of the most recent Load if it has arrived.
// It never blocks.
func (l *Loader[T]) Poll() (Completion[T], bool) {
	for {
		select {
		case c := <-l.results:
			if l.accept(c) {
				return c, true
			}
		default:
			return Completion[T]{}, false
		}
	}
}

// Await blocks until the most recent Load completes or ctx is done. It returns
// false immediately when nothing is pending.
func (l *Loader[T]) Await(ctx context.Context) (Completion[T], bool) {
	for l.Pending() {
		select {
		case c := <-l.results:
			if l.accept(c) {
				return c, true
			}
		case <-ctx.Done():
			return Completion[T]{}, false
		case <-l.ctx.Done():
			return Completion[T]{}, false
		}
	}
	return Completion[T]{}, false
}

func (l *Loader[T]) accept(c Completion[T]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.Seq != l.latest {
		l.logger.Debug("discarding stale source",
			"layer", l.name,
			"url", c.URL,
			"seq", c.Seq,
			"latest", l.latest,
		)
		return false
	}
	l.delivered = c.Seq
	return true
}

// Close cancels in-flight loads and waits for their goroutines to exit.
// Completions that arrive afterwards are dropped. Safe to call twice.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	for {
		select {
		case <-l.results:
		default:
			return
		}
	}
}
