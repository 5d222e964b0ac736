package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"taskflow-backend/internal/tasks"
)

const selectColumns = `
	id, title, completed, priority, owner, created_time,
	parent_id, sort_order, due_date, description, flagged`

// Postgres stores one row per task in the todos table. Merge writes turn
// absent fields into NULL parameters and COALESCE them against the stored row.
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) List(ctx context.Context) ([]tasks.Task, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM todos
		ORDER BY created_time DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	return scanAll(rows)
}

func (p *Postgres) ListByParent(ctx context.Context, parentID string) ([]tasks.Task, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM todos
		WHERE parent_id = $1
		ORDER BY created_time DESC, id ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query subtasks of %s: %w", parentID, err)
	}
	return scanAll(rows)
}

func (p *Postgres) Get(ctx context.Context, id string) (tasks.Task, error) {
	row := p.DB.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM todos
		WHERE id = $1
	`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, tasks.ErrNotFound
	}
	if err != nil {
		return tasks.Task{}, fmt.Errorf("get todo %s: %w", id, err)
	}
	return t, nil
}

func (p *Postgres) Put(ctx context.Context, t tasks.Task, merge bool) error {
	q := `
		INSERT INTO todos (
			id, title, completed, priority, owner, created_time,
			parent_id, sort_order, due_date, description, flagged
		)
		VALUES ($1,$2,COALESCE($3::boolean, FALSE),$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			completed = EXCLUDED.completed,
			priority = EXCLUDED.priority,
			owner = EXCLUDED.owner,
			created_time = EXCLUDED.created_time,
			parent_id = EXCLUDED.parent_id,
			sort_order = EXCLUDED.sort_order,
			due_date = EXCLUDED.due_date,
			description = EXCLUDED.description,
			flagged = EXCLUDED.flagged
	`
	if merge {
		q = `
		INSERT INTO todos (
			id, title, completed, priority, owner, created_time,
			parent_id, sort_order, due_date, description, flagged
		)
		VALUES ($1,$2,COALESCE($3::boolean, FALSE),$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), todos.title),
			completed = CASE WHEN $3::boolean IS NULL THEN todos.completed ELSE EXCLUDED.completed END,
			priority = COALESCE(EXCLUDED.priority, todos.priority),
			owner = COALESCE(NULLIF(EXCLUDED.owner, ''), todos.owner),
			parent_id = COALESCE(EXCLUDED.parent_id, todos.parent_id),
			sort_order = COALESCE(EXCLUDED.sort_order, todos.sort_order),
			due_date = COALESCE(EXCLUDED.due_date, todos.due_date),
			description = COALESCE(EXCLUDED.description, todos.description),
			flagged = COALESCE(EXCLUDED.flagged, todos.flagged)
		`
	}

	_, err := p.DB.ExecContext(ctx, q,
		t.ID,
		t.Title,
		nullBool(t.Completed),
		nullString(string(t.Priority)),
		t.Owner,
		t.CreatedTime.UTC(),
		nullString(t.ParentID),
		nullInt(t.Order),
		t.DueDate,
		t.Description,
		t.Flagged,
	)
	if err != nil {
		return fmt.Errorf("upsert todo %s: %w", t.ID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete todo %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) NewID() string {
	return uuid.NewString()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (tasks.Task, error) {
	var (
		t           tasks.Task
		completed   bool
		priority    sql.NullString
		parentID    sql.NullString
		order       sql.NullInt64
		dueDate     sql.NullTime
		description sql.NullString
		flagged     sql.NullBool
	)
	err := row.Scan(
		&t.ID,
		&t.Title,
		&completed,
		&priority,
		&t.Owner,
		&t.CreatedTime,
		&parentID,
		&order,
		&dueDate,
		&description,
		&flagged,
	)
	if err != nil {
		return tasks.Task{}, err
	}

	t.Completed = &completed
	t.Priority = tasks.Priority(priority.String)
	t.ParentID = parentID.String
	if order.Valid {
		t.SetOrder(int(order.Int64))
	}
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if description.Valid {
		d := description.String
		t.Description = &d
	}
	if flagged.Valid {
		f := flagged.Bool
		t.Flagged = &f
	}
	return t, nil
}

func scanAll(rows *sql.Rows) ([]tasks.Task, error) {
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
