package tasks

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// View owns the latest record snapshot and its aggregation. Refresh is the
// only writer; concurrent refreshes run one after another.
type View struct {
	store Store
	log   *zap.Logger

	refreshMu sync.Mutex

	mu         sync.RWMutex
	records    []Task
	aggregates []Aggregate
	loaded     bool
}

func NewView(store Store, log *zap.Logger) *View {
	if log == nil {
		log = zap.NewNop()
	}
	return &View{
		store:      store,
		log:        log.Named("view"),
		aggregates: []Aggregate{},
	}
}

// Refresh lists the store and recomputes every aggregate from scratch. On a
// read error the previous snapshot stays in place.
func (v *View) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	records, err := v.store.List(ctx)
	if err != nil {
		v.log.Warn("refresh failed, keeping last snapshot", zap.Error(err))
		return &StoreReadError{Op: "list", Err: err}
	}
	aggs := AggregateTasks(records)

	v.mu.Lock()
	v.records = records
	v.aggregates = aggs
	v.loaded = true
	v.mu.Unlock()

	v.log.Debug("refreshed", zap.Int("records", len(records)), zap.Int("aggregates", len(aggs)))
	return nil
}

// Loaded reports whether at least one Refresh succeeded.
func (v *View) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

func (v *View) Aggregates() []Aggregate {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Aggregate, len(v.aggregates))
	for i, a := range v.aggregates {
		subs := make([]Task, len(a.Subtasks))
		for j, s := range a.Subtasks {
			subs[j] = s.Clone()
		}
		out[i] = Aggregate{Key: a.Key, MainTask: a.MainTask.Clone(), Subtasks: subs}
	}
	return out
}

// AggregatesFor keeps only aggregates whose main task belongs to owner.
// Orphaned aggregates are matched on their subtasks' owner.
func (v *View) AggregatesFor(owner string) []Aggregate {
	all := v.Aggregates()
	out := all[:0]
	for _, a := range all {
		if a.HasMainTask() {
			if a.MainTask.Owner == owner {
				out = append(out, a)
			}
			continue
		}
		if len(a.Subtasks) > 0 && a.Subtasks[0].Owner == owner {
			out = append(out, a)
		}
	}
	return out
}

func (v *View) Records() []Task {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Task, len(v.records))
	for i, t := range v.records {
		out[i] = t.Clone()
	}
	return out
}

// ActiveMainTasks lists uncompleted main tasks, newest first.
func (v *View) ActiveMainTasks() []Task {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []Task
	for _, t := range v.records {
		if t.IsMain() && !t.IsCompleted() {
			out = append(out, t.Clone())
		}
	}
	return out
}
