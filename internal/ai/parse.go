package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"taskflow-backend/internal/tasks"
)

// maxSubtaskOrder bounds the order a model may suggest.
const maxSubtaskOrder = 1 << 20

// stripFences removes a surrounding ``` or ```json fence if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func decode(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(stripFences(text)), &v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// ParseMainTask validates a main task suggestion. Title must be a non-empty
// string, priority folds into the enum (missing means none).
func ParseMainTask(text string) (tasks.MainTaskDraft, error) {
	v, err := decode(text)
	if err != nil {
		return tasks.MainTaskDraft{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return tasks.MainTaskDraft{}, fmt.Errorf("expected object, got %s", kindOf(v))
	}

	title, err := requiredString(obj, "title")
	if err != nil {
		return tasks.MainTaskDraft{}, err
	}
	draft := tasks.MainTaskDraft{Title: title, Priority: tasks.PriorityNone}

	if raw, ok := obj["description"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return tasks.MainTaskDraft{}, fmt.Errorf("description: expected string, got %s", kindOf(raw))
		}
		draft.Description = strings.TrimSpace(s)
	}

	if raw, ok := obj["priority"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return tasks.MainTaskDraft{}, fmt.Errorf("priority: expected string, got %s", kindOf(raw))
		}
		p, ok := tasks.ParsePriority(s)
		if !ok {
			return tasks.MainTaskDraft{}, fmt.Errorf("priority: unknown value %q", s)
		}
		draft.Priority = p
	}
	return draft, nil
}

// ParseSubtasks validates a subtask breakdown of the form
// {"subtasks":[{"title":..,"order":..}]}. A missing order falls back to the
// element's position.
func ParseSubtasks(text string) (tasks.SubtaskDrafts, error) {
	v, err := decode(text)
	if err != nil {
		return tasks.SubtaskDrafts{}, err
	}

	var items []any
	switch x := v.(type) {
	case map[string]any:
		raw, ok := x["subtasks"]
		if !ok {
			return tasks.SubtaskDrafts{}, errors.New("subtasks: missing")
		}
		items, ok = raw.([]any)
		if !ok {
			return tasks.SubtaskDrafts{}, fmt.Errorf("subtasks: expected array, got %s", kindOf(raw))
		}
	case []any:
		items = x
	default:
		return tasks.SubtaskDrafts{}, fmt.Errorf("expected object, got %s", kindOf(v))
	}

	out := tasks.SubtaskDrafts{Subtasks: make([]tasks.SubtaskDraft, 0, len(items))}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return tasks.SubtaskDrafts{}, fmt.Errorf("subtasks[%d]: expected object, got %s", i, kindOf(item))
		}
		title, err := requiredString(obj, "title")
		if err != nil {
			return tasks.SubtaskDrafts{}, fmt.Errorf("subtasks[%d]: %w", i, err)
		}
		order := i
		if raw, ok := obj["order"]; ok && raw != nil {
			n, ok := raw.(float64)
			if !ok || n != math.Trunc(n) || n < 0 || n > maxSubtaskOrder {
				return tasks.SubtaskDrafts{}, fmt.Errorf("subtasks[%d].order: expected integer in [0, %d]", i, maxSubtaskOrder)
			}
			order = int(n)
		}
		out.Subtasks = append(out.Subtasks, tasks.SubtaskDraft{Title: title, Order: order})
	}
	return out, nil
}

func requiredString(obj map[string]any, key string) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s: missing", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %s", key, kindOf(raw))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s: empty", key)
	}
	return s, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
