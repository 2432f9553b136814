package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

func TestTaskCRUD(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, &entity.Task{Name: "build thing"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusTODO, task.Status, "status defaults to TODO")

	progress := 0.5
	updated, err := store.UpdateTaskStatus(ctx, task.ID, entity.StatusInProgress, &progress)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, updated.Status)
	assert.Equal(t, 0.5, updated.Progress)

	fetched, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, fetched.Status)
}

func TestCreateTask_RejectsProgressOutOfRange(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.CreateTask(context.Background(), &entity.Task{Name: "x", Progress: 1.5})
	assert.Equal(t, graphkeeperr.Validation, graphkeeperr.KindOf(err))
}

func TestUpdateTaskStatus_RejectsUnknownStatus(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	task, err := store.CreateTask(ctx, &entity.Task{Name: "x"})
	require.NoError(t, err)

	_, err = store.UpdateTaskStatus(ctx, task.ID, "NOT_A_STATUS", nil)
	assert.Equal(t, graphkeeperr.Validation, graphkeeperr.KindOf(err))
}

func TestCreateTask_MaterializesRelatesToEdges(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	a := mustComponent(t, store, entity.KindFile, "a")

	task, err := store.CreateTask(ctx, &entity.Task{Name: "x", RelatedComponentIDs: []string{a.ID}})
	require.NoError(t, err)

	fetched, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, fetched.RelatedComponentIDs)

	// RELATES_TO must never surface through getComponentRelationships.
	edges, err := store.GetComponentRelationships(ctx, a.ID, DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSearchTasks_StructuredFilters(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateTask(ctx, &entity.Task{Name: "alpha", Status: entity.StatusTODO, Progress: 0.2})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, &entity.Task{Name: "beta", Status: entity.StatusDone, Progress: 0.9})
	require.NoError(t, err)

	results, err := store.SearchTasks(ctx, TaskSearchCriteria{StatusList: []entity.TaskStatus{entity.StatusDone}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beta", results[0].Name)

	min := 0.5
	results, err = store.SearchTasks(ctx, TaskSearchCriteria{ProgressMin: &min})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beta", results[0].Name)
}

func TestSearchTasks_TextQueryAppliedInMemory(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateTask(ctx, &entity.Task{Name: "fix login bug", Status: entity.StatusTODO})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, &entity.Task{Name: "write docs", Status: entity.StatusTODO})
	require.NoError(t, err)

	results, err := store.SearchTasks(ctx, TaskSearchCriteria{TextQuery: `name=login`})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fix login bug", results[0].Name)
}

func TestGetTasks_FiltersByStatus(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.CreateTask(ctx, &entity.Task{Name: "a", Status: entity.StatusTODO})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, &entity.Task{Name: "b", Status: entity.StatusBlocked})
	require.NoError(t, err)

	blocked, err := store.GetTasks(ctx, entity.StatusBlocked)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "b", blocked[0].Name)
}
