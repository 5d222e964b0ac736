package tasks

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority folds case and surrounding space. The empty string maps to
// PriorityNone; anything outside the enum is rejected.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityNone, true
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	default:
		return "", false
	}
}

// Task is one persisted record. Main tasks and subtasks share the shape: an
// empty ParentID marks a main task.
//
// Optional fields use pointers (or the empty string) so that a merge write
// can tell "absent" from "set to the zero value".
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Completed   *bool      `json:"completed"`
	Priority    Priority   `json:"priority,omitempty"`
	Owner       string     `json:"owner"`
	CreatedTime time.Time  `json:"created_time"`
	ParentID    string     `json:"parent_id,omitempty"`
	Order       *int       `json:"order,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Description *string    `json:"description,omitempty"`
	Flagged     *bool      `json:"flagged,omitempty"`
}

func (t Task) IsMain() bool { return t.ParentID == "" }

// IsCompleted treats an absent flag as not completed.
func (t Task) IsCompleted() bool { return t.Completed != nil && *t.Completed }

// OrderValue returns the order index, or -1 when absent.
func (t Task) OrderValue() int {
	if t.Order == nil {
		return -1
	}
	return *t.Order
}

func (t *Task) SetOrder(i int) {
	t.Order = &i
}

// MergeInto applies t on top of existing: present fields overwrite, absent
// fields are left untouched. CreatedTime is never overwritten once set.
func (t Task) MergeInto(existing Task) Task {
	out := existing
	if out.ID == "" {
		out.ID = t.ID
	}
	if t.Title != "" {
		out.Title = t.Title
	}
	if t.Completed != nil {
		out.Completed = boolPtr(*t.Completed)
	}
	if t.Priority != "" {
		out.Priority = t.Priority
	}
	if t.Owner != "" {
		out.Owner = t.Owner
	}
	if out.CreatedTime.IsZero() {
		out.CreatedTime = t.CreatedTime
	}
	if t.ParentID != "" {
		out.ParentID = t.ParentID
	}
	if t.Order != nil {
		out.Order = intPtr(*t.Order)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.Flagged != nil {
		f := *t.Flagged
		out.Flagged = &f
	}
	return out
}

// Clone returns a deep copy, so callers can hand out tasks without sharing
// pointer fields.
func (t Task) Clone() Task {
	return t.MergeInto(Task{})
}

// Aggregate is the derived {main task, subtasks} grouping. Key is the main
// task id, or the parent id shared by orphaned subtasks.
type Aggregate struct {
	Key      string `json:"key"`
	MainTask Task   `json:"main_task"`
	Subtasks []Task `json:"subtasks"`
}

// HasMainTask reports whether a main task record was seen for the key; orphaned
// subtasks get a zero-value placeholder.
func (a Aggregate) HasMainTask() bool { return a.MainTask.ID != "" }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }
