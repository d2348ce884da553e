// Package asyncpool is Hypersonic's optional async worker pool (spec.md §5
// ¶2): a fixed set of goroutines that run blocking work off the connection
// goroutine, reporting completions back through a single channel that
// stands in for the pipe/eventfd pool_notify_fd the spec describes. Pool
// goroutines never touch a trampoline.Request or write a response directly
// — "user callbacks never run on pool threads" is upheld by construction,
// since only the owning worker goroutine ever reads a Completion off the
// channel and resolves it.
//
// Grounded on the stdlib worker-pool shape (buffered job channel, fixed
// goroutine count, WaitGroup-free drain via Close) since no example repo in
// this module's corpus carries a third-party pool library (ants and
// friends are absent from every go.mod in the pack) — see DESIGN.md.
package asyncpool

import "context"

// Job is a unit of work submitted to the pool. It runs on a pool goroutine,
// not the caller's goroutine, and must not block on anything the caller
// itself is waiting on.
type Job func(ctx context.Context) (any, error)

// Completion is what a finished Job reports back, carried over Pool's
// notify channel the way spec.md's pool_notify_fd wakes the owning worker.
type Completion struct {
	Value any
	Err   error
	// Token is whatever the submitter attached at Submit time (request id,
	// continuation closure, etc.) so the owning goroutine can correlate a
	// Completion back to the work that produced it.
	Token any
}

// Pool is a fixed-size goroutine pool. Workers pull from an internal job
// queue and push results to Notify; callers own draining Notify from the
// goroutine that should observe completions (typically the event-loop
// worker that submitted the job).
type Pool struct {
	jobs   chan job
	Notify chan Completion
	done   chan struct{}
}

type job struct {
	fn    Job
	token any
	// noNotify skips the Notify send for Do-style jobs, which already
	// deliver their result over a private channel; without this a Do job
	// would also push an orphaned Completion onto Notify that nobody
	// drains, eventually filling its buffer and wedging every worker.
	noNotify bool
}

// New starts a Pool with the given number of worker goroutines and notify
// buffer size. size <= 0 defaults to 1 worker; queue <= 0 defaults to a
// queue as deep as size.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size
	}
	p := &Pool{
		jobs:   make(chan job, queue),
		Notify: make(chan Completion, queue),
		done:   make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	for {
		select {
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			value, err := j.fn(context.Background())
			if !j.noNotify {
				p.Notify <- Completion{Value: value, Err: err, Token: j.token}
			}
		case <-p.done:
			return
		}
	}
}

// Submit enqueues fn to run on a pool goroutine. token is echoed back
// unchanged on the resulting Completion. Submit blocks if the queue is
// full; pass a ctx to bound that wait.
func (p *Pool) Submit(ctx context.Context, fn Job, token any) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.jobs <- job{fn: fn, token: token}:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do offloads fn to a pool goroutine and blocks the caller until it
// completes or ctx is done. This is the trampoline-facing half of the
// notify-fd pattern: spec.md's single-threaded event loop needs a
// pool_notify_fd to avoid blocking its one thread on pool completions, but
// Hypersonic's trampoline already runs each request on its own goroutine
// (net/http.Server's per-connection model), so blocking that one goroutine
// costs nothing to its siblings — the same offload guarantee ("user
// callbacks never run on pool threads") without a notify channel in the
// caller's path. Do still routes through the same worker goroutines and
// queue as Submit/Notify, so a pool shared between Do and Submit callers
// sees one consistent capacity limit.
func (p *Pool) Do(ctx context.Context, fn Job) (any, error) {
	result := make(chan Completion, 1)
	wrapped := job{noNotify: true}
	wrapped.fn = func(ctx context.Context) (any, error) {
		value, err := fn(ctx)
		result <- Completion{Value: value, Err: err}
		return value, err
	}

	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}
	select {
	case p.jobs <- wrapped:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case c := <-result:
		return c.Value, c.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new jobs and signals every worker goroutine to
// exit once its current job finishes. Close does not wait for in-flight
// Completions to be drained from Notify; callers that need that guarantee
// should keep reading Notify until it is empty after Close returns.
func (p *Pool) Close() {
	close(p.done)
}

// ErrClosed is returned by Submit once the pool has been Closed.
var ErrClosed = poolClosedError{}

type poolClosedError struct{}

func (poolClosedError) Error() string { return "asyncpool: pool closed" }
