package taskqueue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"curator/internal/logging"
	"curator/internal/taskerr"
)

var (
	// ErrAbandoned completes jobs dropped by an immediate shutdown.
	ErrAbandoned = errors.New("task abandoned before it started")
	// ErrClosed completes jobs submitted after shutdown began.
	ErrClosed = errors.New("task queue is shut down")
)

// Runnable is one unit of work. *task.Task satisfies it.
type Runnable interface {
	Name() string
	Execute(ctx context.Context) error
}

// Mode selects how Shutdown treats queued jobs.
type Mode int

const (
	// Drain runs every queued job before stopping.
	Drain Mode = iota
	// Immediate abandons queued jobs. The running job is not interrupted.
	Immediate
)

// Info is a read-only view of a job.
type Info struct {
	ID        string
	Name      string
	Priority  int
	Seq       uint64
	Submitted time.Time
	Started   time.Time
}

// Job tracks one submission.
type Job struct {
	info Info
	run  Runnable
	done chan struct{}
	err  error
}

// Info returns the job's metadata.
func (j *Job) Info() Info { return j.info }

// Done is closed when the job finishes or is abandoned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its error, or returns the
// context error if ctx ends first.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.err = err
	close(j.done)
}

// Queue executes submitted jobs one at a time ordered by priority (lower
// first) and then submission order.
type Queue struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending jobHeap
	seq     uint64
	running *Job
	started bool
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

// New constructs an idle queue. Call Start to begin processing.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		logger:  logging.NewComponentLogger(logger, "taskqueue"),
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Start launches the worker. Jobs run with ctx; when ctx ends the worker
// abandons what is still queued and stops.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return errors.New("task queue already started")
	}
	if q.closed {
		return ErrClosed
	}
	q.started = true
	go q.work(ctx)
	return nil
}

// Submit enqueues r. It is safe for concurrent callers. After shutdown the
// returned job is already finished with ErrClosed.
func (q *Queue) Submit(r Runnable, priority int) *Job {
	job := &Job{run: r, done: make(chan struct{})}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		job.info = Info{ID: uuid.NewString(), Name: r.Name(), Priority: priority}
		job.finish(ErrClosed)
		return job
	}
	q.seq++
	job.info = Info{
		ID:        uuid.NewString(),
		Name:      r.Name(),
		Priority:  priority,
		Seq:       q.seq,
		Submitted: q.now(),
	}
	heap.Push(&q.pending, job)
	q.mu.Unlock()

	q.logger.Debug("task queued",
		logging.String(logging.FieldTask, job.info.Name),
		logging.Int("priority", priority),
		logging.String("job_id", job.info.ID),
	)
	q.signal()
	return job
}

// Running returns the job currently executing.
func (q *Queue) Running() (Info, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running == nil {
		return Info{}, false
	}
	return q.running.info, true
}

// Pending returns queued jobs in execution order.
func (q *Queue) Pending() []Info {
	q.mu.Lock()
	ordered := append(jobHeap(nil), q.pending...)
	q.mu.Unlock()
	out := make([]Info, 0, len(ordered))
	for ordered.Len() > 0 {
		out = append(out, heap.Pop(&ordered).(*Job).info)
	}
	return out
}

// Shutdown stops accepting jobs. Drain lets the worker finish the queue;
// Immediate abandons queued jobs. Either way the running job completes.
// A queue that was never started has no worker to drain it, so its queued
// jobs are abandoned in both modes. Shutdown waits for the worker to exit
// or ctx to end.
func (q *Queue) Shutdown(ctx context.Context, mode Mode) error {
	q.mu.Lock()
	q.closed = true
	started := q.started
	var abandoned []*Job
	if mode == Immediate || !started {
		abandoned = q.takePendingLocked()
	}
	q.mu.Unlock()

	for _, job := range abandoned {
		job.finish(ErrAbandoned)
	}
	if len(abandoned) > 0 {
		q.logger.Info("abandoned queued tasks",
			logging.String(logging.FieldEventType, "queue_abandon"),
			logging.Int("count", len(abandoned)),
		)
	}
	if !started {
		return nil
	}
	q.signal()
	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) takePendingLocked() []*Job {
	jobs := make([]*Job, 0, q.pending.Len())
	for q.pending.Len() > 0 {
		jobs = append(jobs, heap.Pop(&q.pending).(*Job))
	}
	return jobs
}

func (q *Queue) work(ctx context.Context) {
	defer close(q.stopped)
	for {
		job, ok := q.next(ctx)
		if !ok {
			return
		}
		q.execute(ctx, job)
	}
}

// next blocks until a job is available. It returns false once the queue is
// closed and empty, or ctx ends.
func (q *Queue) next(ctx context.Context) (*Job, bool) {
	for {
		q.mu.Lock()
		if ctx.Err() != nil {
			q.closed = true
			abandoned := q.takePendingLocked()
			q.mu.Unlock()
			for _, job := range abandoned {
				job.finish(ErrAbandoned)
			}
			return nil, false
		}
		if q.pending.Len() > 0 {
			job := heap.Pop(&q.pending).(*Job)
			job.info.Started = q.now()
			q.running = job
			q.mu.Unlock()
			return job, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
		}
	}
}

func (q *Queue) execute(ctx context.Context, job *Job) {
	logger := q.logger.With(
		logging.String(logging.FieldTask, job.info.Name),
		logging.String("job_id", job.info.ID),
	)
	err := runSafely(ctx, job.run, logger)

	q.mu.Lock()
	q.running = nil
	q.mu.Unlock()

	if err != nil {
		detail := taskerr.Details(err)
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "task_failed"),
			logging.String("error_kind", string(detail.Kind)),
			logging.Error(err),
		}
		switch detail.Kind {
		case taskerr.KindPersistence:
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "history store unavailable; the next run will retry"))
		case taskerr.KindConfiguration, taskerr.KindDependency:
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "fix the task configuration"))
		default:
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "see the task abort reason"))
		}
		logger.Error("task failed; continuing with next", logging.Args(attrs...)...)
	}
	job.finish(err)
}

func runSafely(ctx context.Context, r Runnable, logger *slog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = taskerr.Wrap(taskerr.ErrComponent, r.Name(), "execute", fmt.Sprintf("panic: %v", rec), nil)
			logger.Error("task panicked outside its pipeline",
				logging.String(logging.FieldEventType, "task_panic"),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	return r.Execute(ctx)
}

// jobHeap orders jobs by priority, then submission sequence.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].info.Priority != h[j].info.Priority {
		return h[i].info.Priority < h[j].info.Priority
	}
	return h[i].info.Seq < h[j].info.Seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
