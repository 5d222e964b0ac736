package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskflow-backend/internal/auth"
)

// ErrDraftNotFound is returned for an unknown or already closed draft.
var ErrDraftNotFound = errors.New("draft not found")

// Draft is an open editing session for one aggregate. New drafts hold a main
// task whose id is minted up front, so appended subtasks can carry it as a
// placeholder parent id before anything is persisted.
type Draft struct {
	ID       string
	Owner    string
	IsNew    bool
	MainTask Task
	Subtasks *SubtaskList

	mu       sync.Mutex
	lastUsed time.Time // guarded by Editor.mu
}

// DraftView is the serializable state of a draft.
type DraftView struct {
	ID       string         `json:"id"`
	IsNew    bool           `json:"is_new"`
	MainTask Task           `json:"main_task"`
	Subtasks []SubtaskEntry `json:"subtasks"`
}

func (d *Draft) view() DraftView {
	return DraftView{
		ID:       d.ID,
		IsNew:    d.IsNew,
		MainTask: d.MainTask.Clone(),
		Subtasks: d.Subtasks.Entries(),
	}
}

const (
	DefaultDraftTTL       = 24 * time.Hour
	DefaultDraftsPerOwner = 20
)

// Editor keeps the open drafts. Each draft has a single writer at a time.
// Drafts idle for longer than the TTL are dropped, and opening a draft past
// the per-owner limit evicts that owner's least recently used one.
type Editor struct {
	store    Store
	coord    *Coordinator
	log      *zap.Logger
	now      func() time.Time
	ttl      time.Duration
	perOwner int

	mu     sync.Mutex
	drafts map[string]*Draft
}

type EditorOption func(*Editor)

func WithDraftTTL(ttl time.Duration) EditorOption {
	return func(e *Editor) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func WithDraftsPerOwner(n int) EditorOption {
	return func(e *Editor) {
		if n > 0 {
			e.perOwner = n
		}
	}
}

func WithEditorClock(now func() time.Time) EditorOption {
	return func(e *Editor) { e.now = now }
}

func NewEditor(store Store, coord *Coordinator, log *zap.Logger, opts ...EditorOption) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Editor{
		store:    store,
		coord:    coord,
		log:      log.Named("editor"),
		now:      time.Now,
		ttl:      DefaultDraftTTL,
		perOwner: DefaultDraftsPerOwner,
		drafts:   make(map[string]*Draft),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New opens a draft for a main task that has not been persisted yet.
func (e *Editor) New(ident auth.Identity, main Task) DraftView {
	if main.ID == "" {
		main.ID = e.store.NewID()
	}
	main.ParentID = ""
	d := &Draft{
		ID:       uuid.NewString(),
		Owner:    ident.ID,
		IsNew:    true,
		MainTask: main,
		Subtasks: NewSubtaskList(),
	}
	e.put(d)
	return d.view()
}

// Open loads a persisted main task and its ordered subtasks into a draft.
// Tasks owned by someone else are reported as not found.
func (e *Editor) Open(ctx context.Context, ident auth.Identity, mainID string) (DraftView, error) {
	main, err := e.store.Get(ctx, mainID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DraftView{}, err
		}
		return DraftView{}, &StoreReadError{Op: "get", Err: err}
	}
	if main.Owner != "" && main.Owner != ident.ID {
		return DraftView{}, ErrNotFound
	}
	if !main.IsMain() {
		return DraftView{}, &ValidationError{Field: "id", Reason: "not a main task"}
	}

	list := NewSubtaskList()
	if err := list.Load(ctx, e.store, mainID); err != nil {
		return DraftView{}, err
	}

	d := &Draft{
		ID:       uuid.NewString(),
		Owner:    ident.ID,
		MainTask: main,
		Subtasks: list,
	}
	e.put(d)
	return d.view(), nil
}

// With runs fn on the draft while holding its lock and returns the resulting
// state. Drafts are private to the identity that opened them.
func (e *Editor) With(ident auth.Identity, draftID string, fn func(d *Draft) error) (DraftView, error) {
	d, err := e.get(ident, draftID)
	if err != nil {
		return DraftView{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if fn != nil {
		if err := fn(d); err != nil {
			return d.view(), err
		}
	}
	return d.view(), nil
}

// AppendSubtask adds a new subtask with a minted id and the draft's main task
// id as parent.
func (e *Editor) AppendSubtask(ident auth.Identity, draftID string, sub Task) (DraftView, error) {
	return e.With(ident, draftID, func(d *Draft) error {
		if sub.ID == "" {
			sub.ID = e.store.NewID()
		}
		sub.ParentID = d.MainTask.ID
		d.Subtasks.Append(sub)
		return nil
	})
}

// Submit persists the draft through the coordinator and closes it on success.
// On failure the draft stays open so the user can retry.
func (e *Editor) Submit(ctx context.Context, ident auth.Identity, draftID string) (Aggregate, error) {
	d, err := e.get(ident, draftID)
	if err != nil {
		return Aggregate{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.Subtasks.Tasks()
	var agg Aggregate
	if d.IsNew {
		agg, err = e.coord.CreateAggregate(ctx, ident, d.MainTask, subs)
	} else {
		agg, err = e.coord.UpdateAggregate(ctx, ident, d.MainTask, subs)
	}
	if err != nil {
		return Aggregate{}, err
	}

	e.Close(ident, draftID)
	return agg, nil
}

func (e *Editor) Close(ident auth.Identity, draftID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.drafts[draftID]
	if !ok || d.Owner != ident.ID {
		return false
	}
	delete(e.drafts, draftID)
	return true
}

// Len reports the number of open drafts.
func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.drafts)
}

func (e *Editor) put(d *Draft) {
	e.mu.Lock()
	now := e.now()
	e.sweepLocked(now)

	var (
		count  int
		oldest *Draft
	)
	for _, other := range e.drafts {
		if other.Owner != d.Owner {
			continue
		}
		count++
		if oldest == nil || other.lastUsed.Before(oldest.lastUsed) {
			oldest = other
		}
	}
	if count >= e.perOwner && oldest != nil {
		delete(e.drafts, oldest.ID)
		e.log.Debug("draft evicted", zap.String("draft_id", oldest.ID), zap.String("owner", d.Owner))
	}

	d.lastUsed = now
	e.drafts[d.ID] = d
	e.mu.Unlock()
	e.log.Debug("draft opened", zap.String("draft_id", d.ID), zap.String("task_id", d.MainTask.ID), zap.Bool("new", d.IsNew))
}

func (e *Editor) get(ident auth.Identity, draftID string) (*Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.drafts[draftID]
	if !ok || d.Owner != ident.ID {
		return nil, ErrDraftNotFound
	}
	now := e.now()
	if now.Sub(d.lastUsed) > e.ttl {
		delete(e.drafts, draftID)
		return nil, ErrDraftNotFound
	}
	d.lastUsed = now
	return d, nil
}

func (e *Editor) sweepLocked(now time.Time) {
	for id, d := range e.drafts {
		if now.Sub(d.lastUsed) > e.ttl {
			delete(e.drafts, id)
		}
	}
}
