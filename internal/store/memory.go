// Package store holds the record store backends: in-memory, PostgreSQL and
// Neo4j. All of them implement tasks.Store with the same merge rule
// (tasks.Task.MergeInto).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"taskflow-backend/internal/tasks"
)

// Memory keeps records in a map. It is the default backend and the one tests
// run against.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]tasks.Task
}

func NewMemory(seed ...tasks.Task) *Memory {
	m := &Memory{docs: make(map[string]tasks.Task, len(seed))}
	for _, t := range seed {
		m.docs[t.ID] = t.Clone()
	}
	return m
}

func (m *Memory) List(ctx context.Context) ([]tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]tasks.Task, 0, len(m.docs))
	for _, t := range m.docs {
		out = append(out, t.Clone())
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListByParent(ctx context.Context, parentID string) ([]tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []tasks.Task
	for _, t := range m.docs {
		if t.ParentID == parentID && parentID != "" {
			out = append(out, t.Clone())
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return tasks.Task{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.docs[id]
	if !ok {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, task tasks.Task, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.docs[task.ID]; ok && merge {
		m.docs[task.ID] = task.MergeInto(existing)
		return nil
	}
	m.docs[task.ID] = task.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.docs, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) NewID() string {
	return uuid.NewString()
}

// sortNewestFirst orders by CreatedTime descending, id as tie-break so the
// output is deterministic.
func sortNewestFirst(ts []tasks.Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedTime.Equal(ts[j].CreatedTime) {
			return ts[i].CreatedTime.After(ts[j].CreatedTime)
		}
		return ts[i].ID < ts[j].ID
	})
}
