package tasks

import (
	"context"
	"sort"
)

// SubtaskEntry is one row of an open subtask list.
type SubtaskEntry struct {
	Task    Task `json:"task"`
	Editing bool `json:"editing"`
}

// SubtaskList is the ordered subtask sequence of one open main task. It is not
// safe for concurrent use; Editor serializes access per draft.
//
// Order fields are renumbered densely on MoveUp/MoveDown only. Remove leaves
// gaps, which the coordinator closes when the list is submitted.
type SubtaskList struct {
	entries []SubtaskEntry
}

func NewSubtaskList(subtasks ...Task) *SubtaskList {
	l := &SubtaskList{}
	for _, t := range subtasks {
		l.entries = append(l.entries, SubtaskEntry{Task: t})
	}
	return l
}

// Load replaces the list with the persisted subtasks of parentID, sorted by
// Order ascending. Records without an order sort after the ones that have it.
// On a store error the list is left as it was.
func (l *SubtaskList) Load(ctx context.Context, store Store, parentID string) error {
	subs, err := store.ListByParent(ctx, parentID)
	if err != nil {
		return &StoreReadError{Op: "list subtasks", Err: err}
	}
	SortByOrder(subs)

	entries := make([]SubtaskEntry, 0, len(subs))
	for _, t := range subs {
		entries = append(entries, SubtaskEntry{Task: t})
	}
	l.entries = entries
	return nil
}

// SortByOrder is a stable sort on Order; absent orders go last.
func SortByOrder(subs []Task) {
	sort.SliceStable(subs, func(i, j int) bool {
		oi, oj := subs[i].Order, subs[j].Order
		switch {
		case oi == nil:
			return false
		case oj == nil:
			return true
		default:
			return *oi < *oj
		}
	})
}

func (l *SubtaskList) Len() int { return len(l.entries) }

// Append adds task at the end with Order set to its new index.
func (l *SubtaskList) Append(task Task) Task {
	task.SetOrder(len(l.entries))
	l.entries = append(l.entries, SubtaskEntry{Task: task})
	return task
}

func (l *SubtaskList) MoveUp(id string) {
	i := l.indexOf(id)
	if i <= 0 {
		return
	}
	l.entries[i-1], l.entries[i] = l.entries[i], l.entries[i-1]
	l.renumber()
}

func (l *SubtaskList) MoveDown(id string) {
	i := l.indexOf(id)
	if i < 0 || i == len(l.entries)-1 {
		return
	}
	l.entries[i+1], l.entries[i] = l.entries[i], l.entries[i+1]
	l.renumber()
}

// Remove drops the entry without renumbering the rest.
func (l *SubtaskList) Remove(id string) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return true
}

func (l *SubtaskList) SetEditing(id string, editing bool) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.entries[i].Editing = editing
	return true
}

func (l *SubtaskList) Rename(id, title string) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.entries[i].Task.Title = title
	return true
}

func (l *SubtaskList) Entries() []SubtaskEntry {
	out := make([]SubtaskEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = SubtaskEntry{Task: e.Task.Clone(), Editing: e.Editing}
	}
	return out
}

// Tasks returns the subtasks in list order with their current Order values.
func (l *SubtaskList) Tasks() []Task {
	out := make([]Task, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Task.Clone()
	}
	return out
}

func (l *SubtaskList) Titles() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Task.Title
	}
	return out
}

func (l *SubtaskList) indexOf(id string) int {
	for i, e := range l.entries {
		if e.Task.ID == id {
			return i
		}
	}
	return -1
}

func (l *SubtaskList) renumber() {
	for i := range l.entries {
		l.entries[i].Task.SetOrder(i)
	}
}
