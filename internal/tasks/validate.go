package tasks

import (
	"fmt"
	"strings"
)

// ValidateAggregate checks the form-level requirements of a submission and
// normalizes priorities in place.
func ValidateAggregate(main *Task, subtasks []Task) error {
	main.Title = strings.TrimSpace(main.Title)
	if main.Title == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if main.Priority != "" {
		p, ok := ParsePriority(string(main.Priority))
		if !ok {
			return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", main.Priority)}
		}
		main.Priority = p
	}
	for i := range subtasks {
		subtasks[i].Title = strings.TrimSpace(subtasks[i].Title)
		if subtasks[i].Title == "" {
			return &ValidationError{Field: fmt.Sprintf("subtasks[%d].title", i), Reason: "required"}
		}
	}
	return nil
}
