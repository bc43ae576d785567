package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/flow"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// Table is the record table holding tasks.
const Table = "task"

// Task record fields.
const (
	fieldKind      = "kind"
	fieldRefTable  = "ref_table"
	fieldRefID     = "ref_id"
	fieldStatus    = "status"
	fieldDetail    = "detail"
	fieldUpdatedAt = "updated_at"
)

const defaultClaimBatch = 16

// Handler processes the record a task refers to.
type Handler func(ctx context.Context, ref *core.Record) error

type kindHandler struct {
	table   string
	handler Handler
}

// Queue stores tasks as records and dispatches them by kind.
type Queue struct {
	store      storage.RecordRepository
	logger     *slog.Logger
	claimBatch int

	mu       sync.RWMutex
	handlers map[string]kindHandler

	stopped atomic.Bool
}

var _ flow.Runner = (*Queue)(nil)

// Option configures a Queue.
type Option func(*Queue) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// WithClaimBatch sets how many pending tasks Take reads per attempt.
func WithClaimBatch(n int) Option {
	return func(q *Queue) error {
		if n < 1 {
			n = 1
		}
		q.claimBatch = n
		return nil
	}
}

// New creates a queue over store.
func New(store storage.RecordRepository, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	q := &Queue{
		store:      store,
		logger:     slog.Default(),
		claimBatch: defaultClaimBatch,
		handlers:   make(map[string]kindHandler),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "queue")
	return q, nil
}

// Register binds a handler to a task kind. Tasks of that kind must refer to
// records in refTable.
func (q *Queue) Register(kind, refTable string, h Handler) error {
	if kind == "" {
		return ErrEmptyKind
	}
	if refTable == "" {
		return core.ErrEmptyTable
	}
	if h == nil {
		return flow.ErrNilHandler
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = kindHandler{table: refTable, handler: h}
	return nil
}

// Handles reports whether a handler is registered for kind.
func (q *Queue) Handles(kind string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.handlers[kind]
	return ok
}

// Enqueue adds a pending task for the referenced record.
func (q *Queue) Enqueue(ctx context.Context, kind, refTable, refID string) (*core.Task, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}
	if refTable == "" {
		return nil, core.ErrEmptyTable
	}
	if refID == "" {
		return nil, core.ErrEmptyRecordID
	}

	task := &core.Task{
		ID:       core.NewID(),
		Kind:     kind,
		RefTable: refTable,
		RefID:    refID,
		Status:   core.TaskPending,
	}
	if _, err := q.store.Create(ctx, taskRecord(task)); err != nil {
		return nil, fmt.Errorf("enqueue %s task: %w", kind, err)
	}
	q.logger.Debug("task enqueued", "task", task.ID, "kind", kind, "ref", refTable+":"+refID)
	return task, nil
}

// Take claims the oldest pending task by moving it to processing.
// Returns ErrNoTask when nothing is pending.
func (q *Queue) Take(ctx context.Context) (*core.Task, error) {
	for {
		pending, err := q.store.Find(ctx, query.Query{
			Table: Table,
			Where: query.Equals{Field: fieldStatus, Value: string(core.TaskPending)},
			Limit: q.claimBatch,
		})
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			return nil, ErrNoTask
		}

		for _, rec := range pending {
			ok, err := q.transition(ctx, rec.ID, core.TaskPending, core.TaskProcessing, "")
			if err != nil {
				return nil, err
			}
			if ok {
				task := taskFromRecord(rec)
				task.Status = core.TaskProcessing
				return task, nil
			}
		}
		// Every task in the batch was claimed by someone else; look again.
	}
}

// Process runs the task's handler and records processed or failed.
// The handler error, if any, is stored as the task detail and returned.
func (q *Queue) Process(ctx context.Context, task *core.Task) error {
	logger := q.logger.With("task", task.ID, "kind", task.Kind, "ref", task.RefTable+":"+task.RefID)

	err := q.run(ctx, task)
	status, detail := core.TaskProcessed, ""
	if err != nil {
		status, detail = core.TaskFailed, err.Error()
		logger.Error("task failed", "error", err)
	}

	ok, updateErr := q.transition(ctx, task.ID, core.TaskProcessing, status, detail)
	if updateErr != nil {
		return errors.Join(err, fmt.Errorf("record task status: %w", updateErr))
	}
	if !ok {
		logger.Warn("task was no longer processing, status not recorded", "status", status)
	}
	task.Status = status
	task.Detail = detail
	return err
}

func (q *Queue) run(ctx context.Context, task *core.Task) (err error) {
	q.mu.RLock()
	kh, ok := q.handlers[task.Kind]
	q.mu.RUnlock()

	switch {
	case !ok:
		return fmt.Errorf("%w: %s", ErrUnknownTaskKind, task.Kind)
	case kh.table != task.RefTable:
		return fmt.Errorf("%w: %s expects %s, got %s", ErrWrongRefTable, task.Kind, kh.table, task.RefTable)
	}

	ref, err := q.store.Get(ctx, task.RefTable, task.RefID)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", flow.ErrHandlerPanic, r)
		}
	}()
	err = kh.handler(ctx, ref)
	if errors.Is(err, core.ErrAlreadyStamped) {
		// The work was already done, e.g. by a duplicate task.
		return nil
	}
	return err
}

// Requeue moves tasks in status from back to pending and returns how many
// moved. Use core.TaskProcessing after a crash and core.TaskFailed to retry
// failures.
func (q *Queue) Requeue(ctx context.Context, from core.TaskStatus) (int, error) {
	if err := core.ValidateTaskStatus(from); err != nil {
		return 0, err
	}
	tasks, err := q.store.Find(ctx, query.Query{
		Table: Table,
		Where: query.Equals{Field: fieldStatus, Value: string(from)},
	})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, rec := range tasks {
		ok, err := q.transition(ctx, rec.ID, from, core.TaskPending, "")
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	q.logger.Info("tasks requeued", "from", from, "count", moved)
	return moved, nil
}

// RunOnce drains the queue and returns the number of tasks processed per
// kind. Failed tasks are not counted and stay failed until requeued.
func (q *Queue) RunOnce(ctx context.Context) (flow.Results, error) {
	results := flow.Results{}
	for !q.Stopped() && ctx.Err() == nil {
		task, err := q.Take(ctx)
		if errors.Is(err, ErrNoTask) {
			break
		}
		if err != nil {
			return results, err
		}

		if _, ok := results[task.Kind]; !ok {
			results[task.Kind] = 0
		}
		if err := q.Process(ctx, task); err == nil {
			results[task.Kind]++
		}
	}
	return results, ctx.Err()
}

// Drain is RunOnce under the name the CLI uses.
func (q *Queue) Drain(ctx context.Context) (flow.Results, error) {
	return q.RunOnce(ctx)
}

// Stop makes RunOnce return after the current task.
func (q *Queue) Stop() {
	q.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (q *Queue) Stopped() bool {
	return q.stopped.Load()
}

// Counts returns the number of tasks in each status.
func (q *Queue) Counts(ctx context.Context) (map[core.TaskStatus]int, error) {
	counts := map[core.TaskStatus]int{
		core.TaskPending:    0,
		core.TaskProcessing: 0,
		core.TaskProcessed:  0,
		core.TaskFailed:     0,
	}
	tasks, err := q.store.Find(ctx, query.Query{Table: Table})
	if err != nil {
		return nil, err
	}
	for _, rec := range tasks {
		counts[core.TaskStatus(rec.String(fieldStatus))]++
	}
	return counts, nil
}

// Get returns a task by ID.
func (q *Queue) Get(ctx context.Context, id string) (*core.Task, error) {
	rec, err := q.store.Get(ctx, Table, id)
	if err != nil {
		return nil, err
	}
	return taskFromRecord(rec), nil
}

// transition atomically moves a task from one status to another.
func (q *Queue) transition(ctx context.Context, id string, from, to core.TaskStatus, detail string) (bool, error) {
	fields := map[string]any{
		fieldStatus:    string(to),
		fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		fieldDetail:    nil,
	}
	if detail != "" {
		fields[fieldDetail] = detail
	}
	return q.store.UpdateIf(ctx, Table, id, query.Equals{Field: fieldStatus, Value: string(from)}, fields)
}

func taskRecord(t *core.Task) *core.Record {
	rec := core.NewRecord(Table, t.ID)
	rec.Set(fieldKind, t.Kind)
	rec.Set(fieldRefTable, t.RefTable)
	rec.Set(fieldRefID, t.RefID)
	rec.Set(fieldStatus, string(t.Status))
	rec.Set(fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano))
	if t.Detail != "" {
		rec.Set(fieldDetail, t.Detail)
	}
	return rec
}

func taskFromRecord(rec *core.Record) *core.Task {
	return &core.Task{
		ID:       rec.ID,
		Kind:     rec.String(fieldKind),
		RefTable: rec.String(fieldRefTable),
		RefID:    rec.String(fieldRefID),
		Status:   core.TaskStatus(rec.String(fieldStatus)),
		Detail:   rec.String(fieldDetail),
	}
}
