package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// S1 — CRUD with journal.
func TestComponentCRUD_Journaled(t *testing.T) {
	store, _, j := newTestStore(t)
	ctx := context.Background()

	c1, err := store.CreateComponent(ctx, &entity.Component{Kind: entity.KindFile, Name: "a.js"})
	require.NoError(t, err)
	assert.NotEmpty(t, c1.ID)

	updated, err := store.UpdateComponent(ctx, c1.ID, &entity.Component{Description: "root"})
	require.NoError(t, err)
	assert.Equal(t, "root", updated.Description)
	assert.Equal(t, "a.js", updated.Name, "patch must not clobber unset fields")

	require.NoError(t, store.DeleteComponent(ctx, c1.ID))

	_, err = store.GetComponent(ctx, c1.ID)
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))

	history, err := j.GetEntityHistory(ctx, c1.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.OpDeleteComponent, history[0].Operation)
	assert.Equal(t, entity.OpUpdateComponent, history[1].Operation)
	assert.Equal(t, entity.OpCreateComponent, history[2].Operation)
}

func TestCreateComponent_DuplicateIDConflicts(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	c, err := store.CreateComponent(ctx, &entity.Component{Kind: entity.KindFile, Name: "a.js"})
	require.NoError(t, err)

	_, err = store.CreateComponent(ctx, &entity.Component{ID: c.ID, Kind: entity.KindFile, Name: "a.js"})
	assert.Equal(t, graphkeeperr.Conflict, graphkeeperr.KindOf(err))
}

func TestCreateComponent_RejectsInvalidKind(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.CreateComponent(context.Background(), &entity.Component{Kind: "NOT_A_KIND", Name: "x"})
	assert.Equal(t, graphkeeperr.Validation, graphkeeperr.KindOf(err))
}

func TestUpdateComponent_NotFound(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.UpdateComponent(context.Background(), "missing", &entity.Component{Description: "x"})
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))
}

// S2 — cascade on delete.
func TestDeleteComponent_CascadesRelationshipsAndComments(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	f := mustComponent(t, store, entity.KindFile, "f")
	k := mustComponent(t, store, entity.KindClass, "K")

	_, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelContains, SourceID: f.ID, TargetID: k.ID})
	require.NoError(t, err)

	cm, err := store.CreateComment(ctx, &entity.Comment{ParentID: f.ID, Content: "hi", Author: "u"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteComponent(ctx, f.ID))

	// K still exists.
	_, err = store.GetComponent(ctx, k.ID)
	require.NoError(t, err)

	// The comment attached to the deleted node is gone too.
	_, err = store.GetComment(ctx, cm.ID)
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))

	// K's relationships no longer include the CONTAINS edge from F.
	edges, err := store.GetComponentRelationships(ctx, k.ID, DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSearchComponents_FiltersAndCaps(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustComponent(t, store, entity.KindFile, "file")
	}
	mustComponent(t, store, entity.KindClass, "other")

	results, err := store.SearchComponents(ctx, ComponentFilter{Kind: entity.KindFile})
	require.NoError(t, err)
	assert.Len(t, results, 5)

	results, err = store.SearchComponents(ctx, ComponentFilter{NameSubstring: "oth"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetCodebaseOverview_SortedDescending(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.CreateComponent(ctx, &entity.Component{Kind: entity.KindFile, Name: "f", Codebase: "app"})
		require.NoError(t, err)
	}
	_, err := store.CreateComponent(ctx, &entity.Component{Kind: entity.KindClass, Name: "c", Codebase: "app"})
	require.NoError(t, err)

	rows, err := store.GetCodebaseOverview(ctx, "app")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, entity.KindFile, rows[0].Kind)
	assert.Equal(t, 3, rows[0].Count)
}
