package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskflow-backend/internal/auth"
	"taskflow-backend/internal/changefeed"
)

const defaultWriteConcurrency = 8

// Publisher announces committed aggregate changes to other views.
type Publisher interface {
	Publish(ctx context.Context, ev changefeed.Event) error
}

// Coordinator writes a main task together with its subtasks. The store only
// offers single-document atomicity, so every aggregate operation is a
// best-effort sequence: a failed sub-write is reported once for the whole
// aggregate and completed writes are not rolled back. Callers retry by
// re-submitting; per-subtask upserts are idempotent.
type Coordinator struct {
	store       Store
	view        *View
	feed        Publisher
	metrics     *Metrics
	log         *zap.Logger
	now         func() time.Time
	concurrency int
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.feed = p }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithWriteConcurrency bounds the number of sub-writes in flight.
func WithWriteConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewCoordinator(store Store, view *View, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		store:       store,
		view:        view,
		log:         log.Named("coordinator"),
		now:         time.Now,
		concurrency: defaultWriteConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics()
	}
	return c
}

// CreateAggregate writes the main task, then every subtask as an independent
// write stamped with the main task id and its input position as Order. Ids
// supplied by the caller may only name records the caller already holds in
// this aggregate, so a create can be retried but never lands on someone
// else's record.
func (c *Coordinator) CreateAggregate(ctx context.Context, ident auth.Identity, main Task, subtasks []Task) (agg Aggregate, err error) {
	defer func() { c.metrics.AggregateOps.WithLabelValues("create", result(err)).Inc() }()

	subtasks = cloneAll(subtasks)
	if err := ValidateAggregate(&main, subtasks); err != nil {
		return Aggregate{}, err
	}

	now := c.now()
	if main.ID == "" {
		main.ID = c.store.NewID()
	}
	main.ParentID = ""
	main.Order = nil
	if main.Priority == "" {
		main.Priority = PriorityNone
	}
	if err := c.checkCreateIDs(ctx, ident, main.ID, subtasks); err != nil {
		return Aggregate{}, err
	}
	stampNew(&main, ident, now)

	if err := c.put(ctx, "create", main, false); err != nil {
		c.log.Warn("create main task failed", zap.String("task_id", main.ID), zap.Error(err))
		return Aggregate{}, &StoreWriteError{Op: "create", AggregateID: main.ID, Err: err}
	}

	for i := range subtasks {
		c.prepareSubtask(&subtasks[i], main.ID, i)
		stampNew(&subtasks[i], ident, now)
	}

	errs := make([]error, len(subtasks))
	g := c.group()
	for i, sub := range subtasks {
		i, sub := i, sub
		g.Go(func() error {
			errs[i] = c.put(ctx, "create", sub, false)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		c.log.Warn("create aggregate partially persisted",
			zap.String("aggregate_id", main.ID), zap.Int("subtasks", len(subtasks)), zap.Error(err))
		return Aggregate{}, &StoreWriteError{Op: "create", AggregateID: main.ID, Err: err}
	}

	c.afterWrite(ctx, changefeed.OpCreated, main.ID, ident)
	return Aggregate{Key: main.ID, MainTask: main, Subtasks: subtasks}, nil
}

// UpdateAggregate merge-writes the main task, then reconciles the persisted
// subtasks with the submitted ones: persisted ids missing from the submission
// are deleted and every submitted subtask is merge-upserted. Deletes and
// upserts run concurrently with no ordering between them. Fields absent from
// the submission keep their stored values; owner and created time are never
// taken from the caller for existing records.
func (c *Coordinator) UpdateAggregate(ctx context.Context, ident auth.Identity, main Task, subtasks []Task) (agg Aggregate, err error) {
	defer func() { c.metrics.AggregateOps.WithLabelValues("update", result(err)).Inc() }()

	if main.ID == "" {
		return Aggregate{}, &ValidationError{Field: "id", Reason: "required for update"}
	}
	subtasks = cloneAll(subtasks)
	if err := ValidateAggregate(&main, subtasks); err != nil {
		return Aggregate{}, err
	}

	current, err := c.ownedMain(ctx, ident, main.ID)
	if err != nil {
		return Aggregate{}, err
	}
	main.ParentID = ""
	main.Order = nil
	main.Owner = ""
	main.CreatedTime = time.Time{}

	persisted, err := c.store.ListByParent(ctx, main.ID)
	if err != nil {
		return Aggregate{}, &StoreReadError{Op: "list subtasks", Err: err}
	}
	known := make(map[string]Task, len(persisted))
	for _, p := range persisted {
		known[p.ID] = p
	}

	now := c.now()
	submitted := make(map[string]bool, len(subtasks))
	for i := range subtasks {
		sub := &subtasks[i]
		field := fmt.Sprintf("subtasks[%d].id", i)
		if sub.ID != "" && (submitted[sub.ID] || sub.ID == main.ID) {
			return Aggregate{}, &ValidationError{Field: field, Reason: "duplicate id"}
		}
		if _, ok := known[sub.ID]; ok {
			sub.Owner = ""
			sub.CreatedTime = time.Time{}
		} else {
			if err := c.checkUnused(ctx, field, sub.ID); err != nil {
				return Aggregate{}, err
			}
			stampNew(sub, ident, now)
		}
		c.prepareSubtask(sub, main.ID, i)
		submitted[sub.ID] = true
	}

	var stale []string
	for _, p := range persisted {
		if !submitted[p.ID] {
			stale = append(stale, p.ID)
		}
	}

	if err := c.put(ctx, "update", main, true); err != nil {
		c.log.Warn("update main task failed", zap.String("task_id", main.ID), zap.Error(err))
		return Aggregate{}, &StoreWriteError{Op: "update", AggregateID: main.ID, Err: err}
	}

	errs := make([]error, len(stale)+len(subtasks))
	g := c.group()
	for i, id := range stale {
		i, id := i, id
		g.Go(func() error {
			errs[i] = c.del(ctx, "update", id)
			return nil
		})
	}
	for i, sub := range subtasks {
		i, sub := i, sub
		g.Go(func() error {
			errs[len(stale)+i] = c.put(ctx, "update", sub, true)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		c.log.Warn("update aggregate partially persisted",
			zap.String("aggregate_id", main.ID), zap.Int("deleted", len(stale)),
			zap.Int("upserted", len(subtasks)), zap.Error(err))
		return Aggregate{}, &StoreWriteError{Op: "update", AggregateID: main.ID, Err: err}
	}

	c.afterWrite(ctx, changefeed.OpUpdated, main.ID, ident)

	for i, sub := range subtasks {
		if p, ok := known[sub.ID]; ok {
			subtasks[i] = sub.MergeInto(p)
		}
	}
	main = main.MergeInto(current)
	return Aggregate{Key: main.ID, MainTask: main, Subtasks: subtasks}, nil
}

// DeleteAggregate deletes every subtask of mainID one by one and then the
// main task. The main task is deleted even if a subtask delete failed; the
// failure is still reported for the aggregate.
func (c *Coordinator) DeleteAggregate(ctx context.Context, ident auth.Identity, mainID string) (err error) {
	defer func() { c.metrics.AggregateOps.WithLabelValues("delete", result(err)).Inc() }()

	if mainID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}

	subs, err := c.store.ListByParent(ctx, mainID)
	if err != nil {
		return &StoreReadError{Op: "list subtasks", Err: err}
	}

	var errs []error
	for _, sub := range subs {
		if err := c.del(ctx, "delete", sub.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.del(ctx, "delete", mainID); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		c.log.Warn("delete aggregate incomplete", zap.String("aggregate_id", mainID), zap.Error(err))
		return &StoreWriteError{Op: "delete", AggregateID: mainID, Err: err}
	}

	c.afterWrite(ctx, changefeed.OpDeleted, mainID, ident)
	return nil
}

// DeleteSubtask removes a single subtask. The remaining siblings keep their
// order values until the aggregate is next submitted.
func (c *Coordinator) DeleteSubtask(ctx context.Context, ident auth.Identity, id string) (err error) {
	defer func() { c.metrics.AggregateOps.WithLabelValues("delete_subtask", result(err)).Inc() }()

	current, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return &StoreReadError{Op: "get", Err: err}
	}
	if current.Owner != "" && current.Owner != ident.ID {
		return ErrNotFound
	}
	if current.IsMain() {
		return &ValidationError{Field: "id", Reason: "not a subtask"}
	}

	if err := c.del(ctx, "delete", id); err != nil {
		return &StoreWriteError{Op: "delete", AggregateID: current.ParentID, Err: err}
	}

	c.afterWrite(ctx, changefeed.OpUpdated, current.ParentID, ident)
	return nil
}

// SetCompleted flips the completed flag of a single task with a merge write.
func (c *Coordinator) SetCompleted(ctx context.Context, ident auth.Identity, id string, completed bool) (Task, error) {
	current, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Task{}, err
		}
		return Task{}, &StoreReadError{Op: "get", Err: err}
	}

	patch := Task{ID: id, Completed: &completed}
	if err := c.put(ctx, "complete", patch, true); err != nil {
		return Task{}, &StoreWriteError{Op: "complete", AggregateID: aggregateKey(current), Err: err}
	}

	c.afterWrite(ctx, changefeed.OpUpdated, aggregateKey(current), ident)
	return patch.MergeInto(current), nil
}

func (c *Coordinator) prepareSubtask(sub *Task, mainID string, pos int) {
	if sub.ID == "" {
		sub.ID = c.store.NewID()
	}
	sub.ParentID = mainID
	sub.Priority = ""
	sub.SetOrder(pos)
}

// stampNew marks a record as created by ident. The owner is always the acting
// identity.
func stampNew(t *Task, ident auth.Identity, now time.Time) {
	t.Owner = ident.ID
	if t.CreatedTime.IsZero() {
		t.CreatedTime = now
	}
	if t.Completed == nil {
		t.Completed = boolPtr(false)
	}
}

// ownedMain loads the main task id for an update. Records owned by someone
// else are reported as not found.
func (c *Coordinator) ownedMain(ctx context.Context, ident auth.Identity, id string) (Task, error) {
	current, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Task{}, err
		}
		return Task{}, &StoreReadError{Op: "get", Err: err}
	}
	if current.Owner != "" && current.Owner != ident.ID {
		return Task{}, ErrNotFound
	}
	if !current.IsMain() {
		return Task{}, &ValidationError{Field: "id", Reason: "not a main task"}
	}
	return current, nil
}

// checkCreateIDs rejects caller-supplied ids that already name a record
// outside this aggregate or owned by someone else.
func (c *Coordinator) checkCreateIDs(ctx context.Context, ident auth.Identity, mainID string, subtasks []Task) error {
	existing, err := c.lookup(ctx, mainID)
	if err != nil {
		return err
	}
	if existing != nil && (existing.Owner != ident.ID || !existing.IsMain()) {
		return &ValidationError{Field: "id", Reason: "already in use"}
	}

	seen := map[string]bool{mainID: true}
	for i, sub := range subtasks {
		if sub.ID == "" {
			continue
		}
		field := fmt.Sprintf("subtasks[%d].id", i)
		if seen[sub.ID] {
			return &ValidationError{Field: field, Reason: "duplicate id"}
		}
		seen[sub.ID] = true

		existing, err := c.lookup(ctx, sub.ID)
		if err != nil {
			return err
		}
		if existing != nil && (existing.Owner != ident.ID || existing.ParentID != mainID) {
			return &ValidationError{Field: field, Reason: "already in use"}
		}
	}
	return nil
}

// checkUnused rejects an id that already names a record.
func (c *Coordinator) checkUnused(ctx context.Context, field, id string) error {
	if id == "" {
		return nil
	}
	existing, err := c.lookup(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return &ValidationError{Field: field, Reason: "belongs to another task"}
	}
	return nil
}

// lookup returns nil when no record has id.
func (c *Coordinator) lookup(ctx context.Context, id string) (*Task, error) {
	t, err := c.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreReadError{Op: "get", Err: err}
	}
	return &t, nil
}

func (c *Coordinator) put(ctx context.Context, op string, t Task, merge bool) error {
	err := c.store.Put(ctx, t, merge)
	c.metrics.StoreWrites.WithLabelValues(op+"_put", result(err)).Inc()
	return err
}

func (c *Coordinator) del(ctx context.Context, op, id string) error {
	err := c.store.Delete(ctx, id)
	c.metrics.StoreWrites.WithLabelValues(op+"_delete", result(err)).Inc()
	return err
}

func (c *Coordinator) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(c.concurrency)
	return g
}

// afterWrite refreshes the view and announces the change. Neither failure
// turns a committed write into an error.
func (c *Coordinator) afterWrite(ctx context.Context, op changefeed.Op, aggregateID string, ident auth.Identity) {
	if c.view != nil {
		if err := c.view.Refresh(ctx); err != nil {
			c.log.Warn("view refresh after write failed", zap.String("aggregate_id", aggregateID), zap.Error(err))
		}
	}
	if c.feed != nil {
		ev := changefeed.Event{Op: op, AggregateID: aggregateID, Owner: ident.ID, At: c.now().UTC()}
		if err := c.feed.Publish(ctx, ev); err != nil {
			c.log.Warn("change publish failed", zap.String("aggregate_id", aggregateID), zap.Error(err))
		}
	}
}

func aggregateKey(t Task) string {
	if t.IsMain() {
		return t.ID
	}
	return t.ParentID
}

func cloneAll(in []Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
