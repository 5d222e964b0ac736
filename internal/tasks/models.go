package tasks

// aggregateRequest is the body of POST /tasks and PUT /tasks/{id}.
type aggregateRequest struct {
	Task     Task   `json:"task"`
	Subtasks []Task `json:"subtasks"`
}

type completedRequest struct {
	Completed *bool `json:"completed"`
}

// subtaskPatch carries the inline edits of a draft subtask.
type subtaskPatch struct {
	Title   *string `json:"title"`
	Editing *bool   `json:"editing"`
}

// generateSubtasksRequest carries an optional image; Image is base64 in JSON.
type generateSubtasksRequest struct {
	Image     []byte `json:"image"`
	ImageMIME string `json:"image_mime"`
}

type generateSubtasksResponse struct {
	Draft     DraftView      `json:"draft"`
	Generated []SubtaskDraft `json:"generated"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
