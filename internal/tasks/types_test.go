package tasks_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow-backend/internal/tasks"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want tasks.Priority
		ok   bool
	}{
		{"", tasks.PriorityNone, true},
		{"none", tasks.PriorityNone, true},
		{"Low", tasks.PriorityLow, true},
		{" MEDIUM ", tasks.PriorityMedium, true},
		{"high", tasks.PriorityHigh, true},
		{"urgent", "", false},
	}
	for _, tt := range tests {
		got, ok := tasks.ParsePriority(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMergeInto(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	desc := "keep me"
	existing := tasks.Task{
		ID:          "t1",
		Title:       "old",
		Completed:   ptr(true),
		Priority:    tasks.PriorityHigh,
		Owner:       "alice",
		CreatedTime: created,
		Description: &desc,
	}

	flagged := true
	patch := tasks.Task{
		ID:          "t1",
		Title:       "new",
		CreatedTime: created.Add(time.Hour),
		Flagged:     &flagged,
	}
	patch.SetOrder(3)

	got := patch.MergeInto(existing)

	assert.Equal(t, "new", got.Title)
	assert.True(t, got.IsCompleted(), "absent completed leaves the stored flag")
	assert.Equal(t, tasks.PriorityHigh, got.Priority)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, created, got.CreatedTime, "created time is never overwritten")
	require.NotNil(t, got.Description)
	assert.Equal(t, "keep me", *got.Description)
	require.NotNil(t, got.Flagged)
	assert.True(t, *got.Flagged)
	assert.Equal(t, 3, got.OrderValue())

	*patch.Flagged = false
	assert.True(t, *got.Flagged, "merged value does not share pointers with the patch")

	patch.Completed = ptr(false)
	assert.False(t, patch.MergeInto(existing).IsCompleted(), "present completed overwrites")
}

func TestClone(t *testing.T) {
	desc := "d"
	orig := tasks.Task{ID: "x", Title: "t", Description: &desc}
	orig.SetOrder(1)

	c := orig.Clone()
	*c.Description = "changed"
	*c.Order = 9

	assert.Equal(t, "d", *orig.Description)
	assert.Equal(t, 1, orig.OrderValue())
}
