package speech

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/loqalabs/loqa-speech/internal/tts"
)

// Job is one unit of outbound synthesis work.
type Job func(ctx context.Context) (tts.Audio, error)

// Result is delivered exactly once per submitted job.
type Result struct {
	Audio tts.Audio
	Err   error
}

// QueueStats is a point-in-time view of an AdmissionQueue.
type QueueStats struct {
	Limit     int
	Active    int
	Pending   int
	Peak      int
	Completed int64
}

type queuedTask struct {
	ctx  context.Context
	job  Job
	done chan Result
}

// AdmissionQueue bounds the number of jobs running at once. Jobs are admitted
// strictly in submission order; they complete in whatever order they finish.
// Admitted jobs always run to completion.
type AdmissionQueue struct {
	limit int

	mu        sync.Mutex
	active    int
	peak      int
	completed int64
	pending   *list.List
}

// NewAdmissionQueue creates a queue running at most limit jobs concurrently.
func NewAdmissionQueue(limit int) *AdmissionQueue {
	if limit < 1 {
		limit = 1
	}
	return &AdmissionQueue{limit: limit, pending: list.New()}
}

// Submit appends job to the queue and returns a channel that receives its
// result. The job runs with a context that keeps ctx's values but is never
// cancelled by it.
func (q *AdmissionQueue) Submit(ctx context.Context, job Job) <-chan Result {
	t := &queuedTask{
		ctx:  context.WithoutCancel(ctx),
		job:  job,
		done: make(chan Result, 1),
	}
	q.mu.Lock()
	q.pending.PushBack(t)
	q.promoteLocked()
	q.mu.Unlock()
	return t.done
}

// Do submits job and waits for its result. If ctx ends first Do returns
// ctx.Err(); the job still runs and its result is dropped.
func (q *AdmissionQueue) Do(ctx context.Context, job Job) (tts.Audio, error) {
	done := q.Submit(ctx, job)
	select {
	case res := <-done:
		return res.Audio, res.Err
	case <-ctx.Done():
		return tts.Audio{}, ctx.Err()
	}
}

// Stats returns the current queue counters.
func (q *AdmissionQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Limit:     q.limit,
		Active:    q.active,
		Pending:   q.pending.Len(),
		Peak:      q.peak,
		Completed: q.completed,
	}
}

// promoteLocked starts queued tasks while there is capacity. Must be called
// with q.mu held.
func (q *AdmissionQueue) promoteLocked() {
	for q.active < q.limit && q.pending.Len() > 0 {
		t := q.pending.Remove(q.pending.Front()).(*queuedTask)
		q.active++
		if q.active > q.peak {
			q.peak = q.active
		}
		go q.run(t)
	}
}

func (q *AdmissionQueue) run(t *queuedTask) {
	res := execute(t)

	q.mu.Lock()
	q.active--
	q.completed++
	q.promoteLocked()
	q.mu.Unlock()

	t.done <- res
}

func execute(t *queuedTask) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("synthesis job panicked: %v", r)}
		}
	}()
	audio, err := t.job(t.ctx)
	return Result{Audio: audio, Err: err}
}
