package tasks_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskflow-backend/internal/auth"
	"taskflow-backend/internal/store"
	"taskflow-backend/internal/tasks"
)

var errInjected = errors.New("injected failure")

var alice = auth.Identity{ID: "alice", Authenticated: true}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*store.Memory

	mu               sync.Mutex
	failPutTitles    map[string]bool
	failDeleteIDs    map[string]bool
	failList         bool
	failListByParent bool
}

func newFaultyStore(seed ...tasks.Task) *faultyStore {
	return &faultyStore{
		Memory:        store.NewMemory(seed...),
		failPutTitles: map[string]bool{},
		failDeleteIDs: map[string]bool{},
	}
}

func (f *faultyStore) List(ctx context.Context) ([]tasks.Task, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.Memory.List(ctx)
}

func (f *faultyStore) ListByParent(ctx context.Context, parentID string) ([]tasks.Task, error) {
	f.mu.Lock()
	fail := f.failListByParent
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.Memory.ListByParent(ctx, parentID)
}

func (f *faultyStore) Put(ctx context.Context, t tasks.Task, merge bool) error {
	f.mu.Lock()
	fail := f.failPutTitles[t.Title]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Memory.Put(ctx, t, merge)
}

func (f *faultyStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	fail := f.failDeleteIDs[id]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Memory.Delete(ctx, id)
}

func (f *faultyStore) setFailList(v bool) {
	f.mu.Lock()
	f.failList = v
	f.mu.Unlock()
}

func newCoordinator(s tasks.Store, opts ...tasks.Option) (*tasks.Coordinator, *tasks.View) {
	view := tasks.NewView(s, nil)
	opts = append([]tasks.Option{tasks.WithClock(func() time.Time { return fixedNow })}, opts...)
	return tasks.NewCoordinator(s, view, nil, opts...), view
}

func titles(ts []tasks.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

func orders(ts []tasks.Task) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = t.OrderValue()
	}
	return out
}
