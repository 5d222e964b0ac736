package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow-backend/internal/store"
	"taskflow-backend/internal/tasks"
)

func orderedList() *tasks.SubtaskList {
	l := tasks.NewSubtaskList()
	l.Append(tasks.Task{ID: "a", Title: "A"})
	l.Append(tasks.Task{ID: "b", Title: "B"})
	l.Append(tasks.Task{ID: "c", Title: "C"})
	return l
}

func TestSubtaskList_AppendAssignsNextIndex(t *testing.T) {
	l := orderedList()

	added := l.Append(tasks.Task{ID: "d", Title: "D"})
	assert.Equal(t, 3, added.OrderValue())
	assert.Equal(t, []int{0, 1, 2, 3}, orders(l.Tasks()))
	assert.Equal(t, 4, l.Len())
}

func TestSubtaskList_MoveUpRenumbers(t *testing.T) {
	l := orderedList()

	l.MoveUp("c")

	assert.Equal(t, []string{"A", "C", "B"}, titles(l.Tasks()))
	assert.Equal(t, []int{0, 1, 2}, orders(l.Tasks()))
}

func TestSubtaskList_MoveDownRenumbers(t *testing.T) {
	l := orderedList()

	l.MoveDown("a")

	assert.Equal(t, []string{"B", "A", "C"}, titles(l.Tasks()))
	assert.Equal(t, []int{0, 1, 2}, orders(l.Tasks()))
}

func TestSubtaskList_BoundaryMovesAreNoOps(t *testing.T) {
	l := orderedList()
	before := l.Tasks()

	l.MoveUp("a")
	l.MoveDown("c")
	l.MoveUp("missing")
	l.MoveDown("missing")

	assert.Equal(t, before, l.Tasks())
}

func TestSubtaskList_RemoveKeepsGaps(t *testing.T) {
	l := orderedList()

	require.True(t, l.Remove("b"))
	assert.False(t, l.Remove("b"))

	assert.Equal(t, []string{"A", "C"}, titles(l.Tasks()))
	assert.Equal(t, []int{0, 2}, orders(l.Tasks()))
}

func TestSubtaskList_InlineEdits(t *testing.T) {
	l := orderedList()

	require.True(t, l.SetEditing("b", true))
	require.True(t, l.Rename("b", "B2"))
	assert.False(t, l.Rename("missing", "x"))

	entries := l.Entries()
	assert.True(t, entries[1].Editing)
	assert.Equal(t, "B2", entries[1].Task.Title)
	assert.Equal(t, []string{"A", "B2", "C"}, l.Titles())
}

func TestSubtaskList_LoadSortsByOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, order *int, age int) tasks.Task {
		t := tasks.Task{ID: id, Title: id, ParentID: "m1", CreatedTime: base.Add(time.Duration(age) * time.Minute)}
		if order != nil {
			t.SetOrder(*order)
		}
		return t
	}
	zero, one, two := 0, 1, 2

	s := store.NewMemory(
		tasks.Task{ID: "m1", Title: "main", CreatedTime: base},
		mk("x", &two, 1),
		mk("none", nil, 2),
		mk("y", &zero, 3),
		mk("z", &one, 4),
		tasks.Task{ID: "other", Title: "other", ParentID: "m2", Order: &zero},
	)

	l := tasks.NewSubtaskList()
	require.NoError(t, l.Load(context.Background(), s, "m1"))

	assert.Equal(t, []string{"y", "z", "x", "none"}, titles(l.Tasks()))
	for _, e := range l.Entries() {
		assert.False(t, e.Editing)
	}
}

func TestSubtaskList_LoadErrorLeavesListUnchanged(t *testing.T) {
	s := newFaultyStore()
	s.failListByParent = true

	l := orderedList()
	before := l.Tasks()

	err := l.Load(context.Background(), s, "m1")

	var readErr *tasks.StoreReadError
	require.True(t, errors.As(err, &readErr))
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, before, l.Tasks())
}
