package calendarsync

import (
	"context"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// TaskStore is the durable storage behind the queue.
type TaskStore interface {
	Enqueue(ctx context.Context, t *models.SyncTask) error
	ClaimNext(ctx context.Context, queue string) (*models.SyncTask, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, reason string) error
}

// Queue persists tasks to a named queue and wakes the workers.
type Queue struct {
	store  TaskStore
	name   string
	notify func()
}

// NewQueue creates a queue writing to store under name.
func NewQueue(store TaskStore, name string) *Queue {
	return &Queue{store: store, name: name}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// OnEnqueue registers a callback run after every successful enqueue.
func (q *Queue) OnEnqueue(fn func()) {
	q.notify = fn
}

// Enqueue stores the task. The in-process meeting reference is dropped; only
// the snapshot crosses to the worker.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	rec, err := t.Record(q.name)
	if err != nil {
		return err
	}
	if err := q.store.Enqueue(ctx, rec); err != nil {
		return err
	}
	if q.notify != nil {
		q.notify()
	}
	return nil
}
