package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"taskflow-backend/internal/tasks"
)

// Graph stores tasks as (:Task) nodes. parent_id stays a property, the source
// of truth for aggregation, and is mirrored as a HAS_PARENT relationship when
// the parent node exists.
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewGraph(driver neo4j.DriverWithContext, database string) *Graph {
	return &Graph{driver: driver, database: database}
}

// OpenGraph connects and verifies connectivity.
func OpenGraph(ctx context.Context, uri, user, password, database string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return NewGraph(driver, database), nil
}

func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Graph) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: g.database})
}

func (g *Graph) List(ctx context.Context) ([]tasks.Task, error) {
	return g.read(ctx, "MATCH (t:Task) RETURN t ORDER BY t.created_time DESC, t.id ASC", nil)
}

func (g *Graph) ListByParent(ctx context.Context, parentID string) ([]tasks.Task, error) {
	return g.read(ctx,
		"MATCH (t:Task {parent_id: $parentId}) RETURN t ORDER BY t.created_time DESC, t.id ASC",
		map[string]any{"parentId": parentID},
	)
}

func (g *Graph) Get(ctx context.Context, id string) (tasks.Task, error) {
	found, err := g.read(ctx, "MATCH (t:Task {id: $id}) RETURN t", map[string]any{"id": id})
	if err != nil {
		return tasks.Task{}, err
	}
	if len(found) == 0 {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return found[0], nil
}

func (g *Graph) Put(ctx context.Context, t tasks.Task, merge bool) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	set := "SET t = $props"
	if merge {
		set = "SET t += $props"
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MERGE (t:Task {id: $id}) "+
				"ON CREATE SET t.created_time = $created "+
				set+" "+
				"RETURN t.parent_id AS parent_id",
			map[string]any{
				"id":      t.ID,
				"created": t.CreatedTime.UTC(),
				"props":   properties(t, merge),
			},
		)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		parentID, _ := rec.Get("parent_id")
		pid, _ := parentID.(string)
		if pid == "" {
			return nil, nil
		}

		_, err = tx.Run(ctx,
			"MATCH (child:Task {id: $childID}), (parent:Task {id: $parentID}) "+
				"MERGE (child)-[:HAS_PARENT]->(parent)",
			map[string]any{
				"childID":  t.ID,
				"parentID": pid,
			},
		)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("write task %s: %w", t.ID, err)
	}
	return nil
}

func (g *Graph) Delete(ctx context.Context, id string) error {
	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MATCH (t:Task {id: $id}) DETACH DELETE t",
			map[string]any{"id": id},
		)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (g *Graph) NewID() string {
	return uuid.NewString()
}

func (g *Graph) read(ctx context.Context, cypher string, params map[string]any) ([]tasks.Task, error) {
	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var out []tasks.Task
		for res.Next(ctx) {
			v, ok := res.Record().Get("t")
			if !ok {
				continue
			}
			node, ok := v.(neo4j.Node)
			if !ok {
				return nil, fmt.Errorf("unexpected value %T", v)
			}
			out = append(out, fromProps(node.Props))
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j read: %w", err)
	}
	found, _ := result.([]tasks.Task)
	return found, nil
}

// properties maps a task onto node properties. For merge writes absent fields
// are left out so "SET t += $props" keeps the stored values.
func properties(t tasks.Task, merge bool) map[string]any {
	props := map[string]any{"id": t.ID}
	if t.Completed != nil {
		props["completed"] = *t.Completed
	} else if !merge {
		props["completed"] = false
	}
	if !merge || t.Title != "" {
		props["title"] = t.Title
	}
	if !merge || t.Owner != "" {
		props["owner"] = t.Owner
	}
	if !merge {
		props["created_time"] = t.CreatedTime.UTC()
	}
	if t.Priority != "" {
		props["priority"] = string(t.Priority)
	}
	if t.ParentID != "" {
		props["parent_id"] = t.ParentID
	}
	if t.Order != nil {
		props["sort_order"] = int64(*t.Order)
	}
	if t.DueDate != nil {
		props["due_date"] = t.DueDate.UTC()
	}
	if t.Description != nil {
		props["description"] = *t.Description
	}
	if t.Flagged != nil {
		props["flagged"] = *t.Flagged
	}
	return props
}

func fromProps(p map[string]any) tasks.Task {
	var t tasks.Task
	t.ID, _ = p["id"].(string)
	t.Title, _ = p["title"].(string)
	completed, _ := p["completed"].(bool)
	t.Completed = &completed
	t.Owner, _ = p["owner"].(string)
	t.ParentID, _ = p["parent_id"].(string)
	if s, ok := p["priority"].(string); ok {
		t.Priority = tasks.Priority(s)
	}
	if ts, ok := p["created_time"].(time.Time); ok {
		t.CreatedTime = ts
	}
	if n, ok := p["sort_order"].(int64); ok {
		t.SetOrder(int(n))
	}
	if ts, ok := p["due_date"].(time.Time); ok {
		t.DueDate = &ts
	}
	if s, ok := p["description"].(string); ok {
		t.Description = &s
	}
	if b, ok := p["flagged"].(bool); ok {
		t.Flagged = &b
	}
	return t
}
