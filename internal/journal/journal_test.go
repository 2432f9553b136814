package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphbackendfake"
	"github.com/graphkeep/graphkeep/internal/ids"
)

func newTestJournal() *Journal {
	return New(graphbackendfake.New(), ids.NewClock())
}

// S1 — CRUD with journal: history comes back newest-first.
func TestAppend_NewestFirstHistory(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	_, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", After: map[string]string{"name": "a.js"}})
	require.NoError(t, err)
	_, err = j.Append(ctx, AppendInput{Operation: entity.OpUpdateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", Before: map[string]string{}, After: map[string]string{"description": "root"}})
	require.NoError(t, err)
	_, err = j.Append(ctx, AppendInput{Operation: entity.OpDeleteComponent, EntityKind: entity.EntityComponent, EntityID: "c1", Before: map[string]string{}})
	require.NoError(t, err)

	history, err := j.GetEntityHistory(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.OpDeleteComponent, history[0].Operation)
	assert.Equal(t, entity.OpUpdateComponent, history[1].Operation)
	assert.Equal(t, entity.OpCreateComponent, history[2].Operation)
}

func TestAppend_MintsIDAndTimestamp(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	ev, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateTask, EntityKind: entity.EntityTask, EntityID: "t1", After: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.NotEmpty(t, ev.Timestamp)
	assert.Equal(t, entity.SourceAPI, ev.Source)
}

func TestAppend_CreateHasNoBeforeState(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	ev, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", After: map[string]string{"name": "a"}})
	require.NoError(t, err)
	assert.Empty(t, ev.BeforeState)
	assert.NotEmpty(t, ev.AfterState)
}

func TestAppend_DeleteHasNoAfterState(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	ev, err := j.Append(ctx, AppendInput{Operation: entity.OpDeleteComponent, EntityKind: entity.EntityComponent, EntityID: "c1", Before: map[string]string{"name": "a"}})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.BeforeState)
	assert.Empty(t, ev.AfterState)
}

func TestGetChangesByTimeRange_Ascending(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", After: "x"})
		require.NoError(t, err)
	}

	events, err := j.GetChangesByTimeRange(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].Timestamp <= events[1].Timestamp)
	assert.True(t, events[1].Timestamp <= events[2].Timestamp)
}

func TestGetRecentChanges_FiltersByOperation(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	_, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", After: "x"})
	require.NoError(t, err)
	_, err = j.Append(ctx, AppendInput{Operation: entity.OpCreateTask, EntityKind: entity.EntityTask, EntityID: "t1", After: "y"})
	require.NoError(t, err)

	events, err := j.GetRecentChanges(ctx, 0, []entity.Operation{entity.OpCreateTask})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.OpCreateTask, events[0].Operation)
}

func TestGetSessionChanges(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	_, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", After: "x", SessionID: "s1"})
	require.NoError(t, err)
	_, err = j.Append(ctx, AppendInput{Operation: entity.OpCreateTask, EntityKind: entity.EntityTask, EntityID: "t1", After: "y", SessionID: "s2"})
	require.NoError(t, err)

	events, err := j.GetSessionChanges(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].EntityID)
}

func TestGetStats(t *testing.T) {
	j := newTestJournal()
	ctx := context.Background()

	_, err := j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c1", After: "x"})
	require.NoError(t, err)
	_, err = j.Append(ctx, AppendInput{Operation: entity.OpCreateComponent, EntityKind: entity.EntityComponent, EntityID: "c2", After: "x"})
	require.NoError(t, err)
	_, err = j.Append(ctx, AppendInput{Operation: entity.OpCreateTask, EntityKind: entity.EntityTask, EntityID: "t1", After: "y"})
	require.NoError(t, err)

	stats, err := j.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByOperation[entity.OpCreateComponent])
	assert.Equal(t, 1, stats.ByOperation[entity.OpCreateTask])
}
