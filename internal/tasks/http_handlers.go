package tasks

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"taskflow-backend/internal/analytics"
	"taskflow-backend/internal/auth"
)

// Handler serves the task and draft endpoints. Generator may be nil, in which
// case the generation endpoints answer 503.
type Handler struct {
	Store     Store
	View      *View
	Coord     *Coordinator
	Editor    *Editor
	Generator Generator
	Events    analytics.Sink
	Log       *zap.Logger
}

func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/tasks", h.ListAggregates).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.CreateAggregate).Methods(http.MethodPost)
	r.HandleFunc("/tasks", h.DeleteOwnedAggregates).Methods(http.MethodDelete)
	r.HandleFunc("/tasks/generate", h.GenerateMainTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", h.UpdateAggregate).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}", h.DeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/tasks/{id}/completed", h.SetCompleted).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/{id}/subtasks", h.ListSubtasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/drafts", h.OpenDraft).Methods(http.MethodPost)

	r.HandleFunc("/drafts", h.NewDraft).Methods(http.MethodPost)
	r.HandleFunc("/drafts/{id}", h.GetDraft).Methods(http.MethodGet)
	r.HandleFunc("/drafts/{id}", h.CloseDraft).Methods(http.MethodDelete)
	r.HandleFunc("/drafts/{id}/subtasks", h.AppendSubtask).Methods(http.MethodPost)
	r.HandleFunc("/drafts/{id}/subtasks/{sid}", h.PatchSubtask).Methods(http.MethodPatch)
	r.HandleFunc("/drafts/{id}/subtasks/{sid}", h.RemoveSubtask).Methods(http.MethodDelete)
	r.HandleFunc("/drafts/{id}/subtasks/{sid}/up", h.MoveSubtaskUp).Methods(http.MethodPost)
	r.HandleFunc("/drafts/{id}/subtasks/{sid}/down", h.MoveSubtaskDown).Methods(http.MethodPost)
	r.HandleFunc("/drafts/{id}/generate", h.GenerateSubtasks).Methods(http.MethodPost)
	r.HandleFunc("/drafts/{id}/submit", h.SubmitDraft).Methods(http.MethodPost)
}

// ListAggregates returns the caller's aggregates. The view is refreshed on
// first use or with ?refresh=1; if that refresh fails but a snapshot exists,
// the stale snapshot is served with X-Snapshot-Stale set.
func (h *Handler) ListAggregates(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("refresh")
	if !h.View.Loaded() || q == "1" || q == "true" {
		if err := h.View.Refresh(r.Context()); err != nil {
			if !h.View.Loaded() {
				writeError(w, h.Log, err)
				return
			}
			w.Header().Set("X-Snapshot-Stale", "1")
		}
	}

	writeJSON(w, http.StatusOK, h.View.AggregatesFor(ident.ID))
}

func (h *Handler) CreateAggregate(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var body aggregateRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	agg, err := h.Coord.CreateAggregate(r.Context(), ident, body.Task, body.Subtasks)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_created", map[string]any{
		"task_id":       agg.Key,
		"subtask_count": len(agg.Subtasks),
		"priority":      agg.MainTask.Priority,
		"has_due_date":  agg.MainTask.DueDate != nil,
	})
	writeJSON(w, http.StatusCreated, agg)
}

func (h *Handler) UpdateAggregate(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.ownedMain(r.Context(), ident, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	var body aggregateRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Task.ID = id

	agg, err := h.Coord.UpdateAggregate(r.Context(), ident, body.Task, body.Subtasks)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_updated", map[string]any{
		"task_id":       agg.Key,
		"subtask_count": len(agg.Subtasks),
	})
	writeJSON(w, http.StatusOK, agg)
}

// DeleteTask deletes a whole aggregate when id names a main task, or a single
// subtask otherwise.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	t, err := h.owned(r.Context(), ident, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	if t.IsMain() {
		err = h.Coord.DeleteAggregate(r.Context(), ident, id)
	} else {
		err = h.Coord.DeleteSubtask(r.Context(), ident, id)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_deleted", map[string]any{"task_id": id, "subtask": !t.IsMain()})
	w.WriteHeader(http.StatusNoContent)
}

// DeleteOwnedAggregates removes every aggregate of the caller, orphans
// included. Aggregates are deleted one by one; failures are collected and the
// rest still run.
func (h *Handler) DeleteOwnedAggregates(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.View.Refresh(r.Context()); err != nil {
		writeError(w, h.Log, err)
		return
	}

	owned := h.View.AggregatesFor(ident.ID)
	var errs []error
	for _, agg := range owned {
		if err := h.Coord.DeleteAggregate(r.Context(), ident, agg.Key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "tasks_purged", map[string]any{"aggregates": len(owned)})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"deleted": len(owned),
	})
}

func (h *Handler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.owned(r.Context(), ident, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	var body completedRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Completed == nil {
		writeError(w, h.Log, &ValidationError{Field: "completed", Reason: "required"})
		return
	}

	t, err := h.Coord.SetCompleted(r.Context(), ident, id, *body.Completed)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_completed", map[string]any{
		"task_id":   t.ID,
		"completed": t.IsCompleted(),
		"subtask":   !t.IsMain(),
	})
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.ownedMain(r.Context(), ident, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	list := NewSubtaskList()
	if err := list.Load(r.Context(), h.Store, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list.Tasks())
}

func (h *Handler) GenerateMainTask(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if h.Generator == nil {
		http.Error(w, "generation disabled", http.StatusServiceUnavailable)
		return
	}

	var titles []string
	for _, t := range h.View.ActiveMainTasks() {
		if t.Owner == ident.ID {
			titles = append(titles, t.Title)
		}
	}

	draft, err := h.Generator.GenerateMainTask(r.Context(), titles)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_generated", map[string]any{"kind": "main_task"})
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) NewDraft(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var main Task
	if !decodeJSON(w, r, &main) {
		return
	}
	writeJSON(w, http.StatusCreated, h.Editor.New(ident, main))
}

func (h *Handler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	d, err := h.Editor.Open(r.Context(), ident, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	h.editDraft(w, r, nil)
}

func (h *Handler) CloseDraft(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.Editor.Close(ident, mux.Vars(r)["id"]) {
		writeError(w, h.Log, ErrDraftNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AppendSubtask(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var sub Task
	if !decodeJSON(w, r, &sub) {
		return
	}
	sub.Title = strings.TrimSpace(sub.Title)
	if sub.Title == "" {
		writeError(w, h.Log, &ValidationError{Field: "title", Reason: "required"})
		return
	}

	d, err := h.Editor.AppendSubtask(ident, mux.Vars(r)["id"], sub)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) PatchSubtask(w http.ResponseWriter, r *http.Request) {
	var body subtaskPatch
	if !decodeJSON(w, r, &body) {
		return
	}
	sid := mux.Vars(r)["sid"]

	h.editDraft(w, r, func(d *Draft) error {
		if body.Title != nil {
			title := strings.TrimSpace(*body.Title)
			if title == "" {
				return &ValidationError{Field: "title", Reason: "required"}
			}
			if !d.Subtasks.Rename(sid, title) {
				return ErrNotFound
			}
		}
		if body.Editing != nil && !d.Subtasks.SetEditing(sid, *body.Editing) {
			return ErrNotFound
		}
		return nil
	})
}

func (h *Handler) RemoveSubtask(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	h.editDraft(w, r, func(d *Draft) error {
		if !d.Subtasks.Remove(sid) {
			return ErrNotFound
		}
		return nil
	})
}

func (h *Handler) MoveSubtaskUp(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	h.editDraft(w, r, func(d *Draft) error {
		d.Subtasks.MoveUp(sid)
		return nil
	})
}

func (h *Handler) MoveSubtaskDown(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	h.editDraft(w, r, func(d *Draft) error {
		d.Subtasks.MoveDown(sid)
		return nil
	})
}

// GenerateSubtasks asks the model to break the draft's main task down and
// appends the suggestions to the draft. Nothing is persisted until submit.
func (h *Handler) GenerateSubtasks(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if h.Generator == nil {
		http.Error(w, "generation disabled", http.StatusServiceUnavailable)
		return
	}
	draftID := mux.Vars(r)["id"]

	var body generateSubtasksRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	req := SubtaskRequest{Image: body.Image, ImageMIME: body.ImageMIME}
	_, err := h.Editor.With(ident, draftID, func(d *Draft) error {
		req.Title = d.MainTask.Title
		req.ExistingTitles = d.Subtasks.Titles()
		return nil
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	gen, err := h.Generator.GenerateSubtasks(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	suggested := slices.Clone(gen.Subtasks)
	slices.SortStableFunc(suggested, func(a, b SubtaskDraft) int { return cmp.Compare(a.Order, b.Order) })

	d, err := h.Editor.With(ident, draftID, func(d *Draft) error {
		for _, s := range suggested {
			d.Subtasks.Append(Task{ID: h.Store.NewID(), Title: s.Title, ParentID: d.MainTask.ID})
		}
		return nil
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_generated", map[string]any{
		"kind":      "subtasks",
		"count":     len(suggested),
		"has_image": len(body.Image) > 0,
	})
	writeJSON(w, http.StatusOK, generateSubtasksResponse{Draft: d, Generated: suggested})
}

func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	agg, err := h.Editor.Submit(r.Context(), ident, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.logEvent(r, ident, "task_updated", map[string]any{
		"task_id":       agg.Key,
		"subtask_count": len(agg.Subtasks),
		"source":        "draft",
	})
	writeJSON(w, http.StatusOK, agg)
}

func (h *Handler) editDraft(w http.ResponseWriter, r *http.Request, fn func(d *Draft) error) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	d, err := h.Editor.With(ident, mux.Vars(r)["id"], fn)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// owned loads a task and hides it when it belongs to somebody else.
func (h *Handler) owned(ctx context.Context, ident auth.Identity, id string) (Task, error) {
	t, err := h.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Task{}, err
		}
		return Task{}, &StoreReadError{Op: "get", Err: err}
	}
	if t.Owner != "" && t.Owner != ident.ID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (h *Handler) ownedMain(ctx context.Context, ident auth.Identity, id string) (Task, error) {
	t, err := h.owned(ctx, ident, id)
	if err != nil {
		return Task{}, err
	}
	if !t.IsMain() {
		return Task{}, &ValidationError{Field: "id", Reason: "not a main task"}
	}
	return t, nil
}
