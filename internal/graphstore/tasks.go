package graphstore

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
	"github.com/graphkeep/graphkeep/internal/query"
)

// CreateTask assigns a fresh id if absent, persists the Task plus its
// RELATES_TO edges, and journals CREATE_TASK. Every id in
// RelatedComponentIDs must already resolve to a Component or Task, the same
// existence check CreateRelationship applies to an edge's endpoints.
func (s *Store) CreateTask(ctx context.Context, t *entity.Task) (*entity.Task, error) {
	if t.ID == "" {
		t.ID = ids.New(ids.PrefixTask, t.Name, t.Description, "api", s.clock.Now(), 0)
	}
	if t.Status == "" {
		t.Status = entity.StatusTODO
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for _, componentID := range t.RelatedComponentIDs {
		if !s.existsNode(ctx, componentID) {
			return nil, graphkeeperr.New(graphkeeperr.NotFound, "related component %s not found", componentID)
		}
	}

	now := s.now()
	if err := s.backend.InsertTask(ctx, t, now, func() string { return ids.NewRandom(ids.PrefixRel) }); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, journalCreateInput(ctx, entity.OpCreateTask, entity.EntityTask, t.ID, t)); err != nil {
		return nil, err
	}
	s.publish(eventbus.TaskCreated, t)
	return t, nil
}

// GetTask fetches a Task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	return s.backend.GetTask(ctx, id)
}

// GetTasks returns every Task, optionally filtered to one status.
func (s *Store) GetTasks(ctx context.Context, status entity.TaskStatus) ([]*entity.Task, error) {
	filter := graphbackend.TaskFilter{OrderBy: "created_at"}
	if status != "" {
		filter.StatusList = []entity.TaskStatus{status}
	}
	return s.backend.SearchTasks(ctx, filter)
}

// UpdateTaskStatus transitions a Task's status and optional progress,
// journaling UPDATE_TASK with before/after.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status entity.TaskStatus, progress *float64) (*entity.Task, error) {
	before, err := s.backend.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before
	after.Status = status
	if progress != nil {
		after.Progress = *progress
	}
	if err := after.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.backend.UpdateTask(ctx, &after, now, func() string { return ids.NewRandom(ids.PrefixRel) }); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, journalUpdateInput(ctx, entity.OpUpdateTask, entity.EntityTask, id, before, &after)); err != nil {
		return nil, err
	}
	s.publish(eventbus.TaskUpdated, &after)
	return &after, nil
}

// TaskSearchCriteria is searchTasks' full criteria shape (spec §4.1).
type TaskSearchCriteria struct {
	TextQuery           string
	StatusList           []entity.TaskStatus
	ProgressMin          *float64
	ProgressMax          *float64
	CreatedAfter         *string
	CreatedBefore        *string
	RelatedComponentIDs  []string
	OrderBy              string // created | name | status | progress
	OrderDirection       string // asc | desc
	Limit                int
}

const defaultSearchLimit = 100
const maxSearchLimit = 1000

var orderByColumn = map[string]string{
	"created":  "created_at",
	"name":     "name",
	"status":   "status",
	"progress": "progress",
}

// SearchTasks runs the structured filter against the backend, then applies
// the optional free-text query predicate in-memory.
func (s *Store) SearchTasks(ctx context.Context, c TaskSearchCriteria) ([]*entity.Task, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	filter := graphbackend.TaskFilter{
		StatusList:      c.StatusList,
		ProgressMin:     c.ProgressMin,
		ProgressMax:     c.ProgressMax,
		CreatedAfter:    c.CreatedAfter,
		CreatedBefore:   c.CreatedBefore,
		OrderBy:         orderByColumn[c.OrderBy],
		OrderDescending: c.OrderDirection == "desc",
		Limit:           limit,
	}
	if len(c.RelatedComponentIDs) > 0 {
		filter.RelatedComponentID = c.RelatedComponentIDs[0]
	}

	results, err := s.backend.SearchTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	if c.TextQuery != "" {
		pred, err := query.EvaluateAt(c.TextQuery, s.clock.Now())
		if err != nil {
			return nil, err
		}
		filtered := results[:0]
		for _, t := range results {
			if pred(t) {
				filtered = append(filtered, t)
			}
		}
		results = filtered
	}
	return results, nil
}
