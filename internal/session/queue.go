package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("session closed")

// Pending is the durable outcome of one queued write. Callers may wait for
// it or drop it; the write runs either way.
type Pending struct {
	op   string
	done chan struct{}
	err  error
}

func newPending(op string) *Pending {
	return &Pending{op: op, done: make(chan struct{})}
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Op names the queued write.
func (p *Pending) Op() string { return p.op }

// Done is closed once the write has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the write finishes or ctx ends and returns the write's
// error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	ctx context.Context
	fn  func(context.Context) error
	p   *Pending
}

// writeQueue runs writes one at a time in submission order.
type writeQueue struct {
	logger *slog.Logger

	mu      sync.Mutex
	jobs    []job
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newWriteQueue(logger *slog.Logger) *writeQueue {
	q := &writeQueue{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// submit queues fn. The write keeps ctx's values but not its cancellation.
func (q *writeQueue) submit(ctx context.Context, op string, fn func(context.Context) error) *Pending {
	p := newPending(op)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		p.finish(ErrClosed)
		return p
	}
	q.jobs = append(q.jobs, job{ctx: context.WithoutCancel(ctx), fn: fn, p: p})
	q.mu.Unlock()
	q.signal()
	return p
}

func (q *writeQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *writeQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *writeQueue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		err := j.fn(j.ctx)
		if err != nil {
			q.logger.Error("write failed; memory and store diverge until reload",
				slog.String("op", j.p.op), slog.String("error", err.Error()))
		}
		j.p.finish(err)
	}
}

// flush waits for every write submitted before the call.
func (q *writeQueue) flush(ctx context.Context) error {
	barrier := q.submit(ctx, "flush", func(context.Context) error { return nil })
	return barrier.Wait(ctx)
}

// close stops intake, then waits for queued writes to drain.
func (q *writeQueue) close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
