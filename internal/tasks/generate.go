package tasks

import "context"

// MainTaskDraft is a validated model suggestion for a main task. It is
// advisory only; nothing is written until the user submits it.
type MainTaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
}

type SubtaskDraft struct {
	Title string `json:"title"`
	Order int    `json:"order"`
}

type SubtaskDrafts struct {
	Subtasks []SubtaskDraft `json:"subtasks"`
}

// SubtaskRequest describes the main task to break down. Either Title or Image
// must be set for the model to be called.
type SubtaskRequest struct {
	Title          string
	Image          []byte
	ImageMIME      string
	ExistingTitles []string
}

func (r SubtaskRequest) Empty() bool {
	return r.Title == "" && len(r.Image) == 0
}

// Generator produces drafts from a generative model.
type Generator interface {
	GenerateMainTask(ctx context.Context, activeTitles []string) (MainTaskDraft, error)
	GenerateSubtasks(ctx context.Context, req SubtaskRequest) (SubtaskDrafts, error)
}
