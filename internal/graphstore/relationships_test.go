package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

func TestCreateRelationship_RequiresExistingEndpoints(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	a := mustComponent(t, store, entity.KindFile, "a")

	_, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelDependsOn, SourceID: a.ID, TargetID: "missing"})
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))

	_, err = store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelDependsOn, SourceID: "missing", TargetID: a.ID})
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))
}

func TestCreateRelationship_RejectsInternalType(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	a := mustComponent(t, store, entity.KindFile, "a")
	b := mustComponent(t, store, entity.KindFile, "b")

	_, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelHasComment, SourceID: a.ID, TargetID: b.ID})
	assert.Equal(t, graphkeeperr.Validation, graphkeeperr.KindOf(err))
}

// Invariant 9: getComponentRelationships never returns HAS_COMMENT or
// RELATES_TO edges, even though they are materialized as relationships rows.
func TestGetComponentRelationships_ExcludesInternalEdges(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	a := mustComponent(t, store, entity.KindFile, "a")
	b := mustComponent(t, store, entity.KindFile, "b")

	_, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelDependsOn, SourceID: a.ID, TargetID: b.ID})
	require.NoError(t, err)

	_, err = store.CreateComment(ctx, &entity.Comment{ParentID: a.ID, Content: "hi", Author: "u"})
	require.NoError(t, err)

	_, err = store.CreateTask(ctx, &entity.Task{Name: "t", RelatedComponentIDs: []string{a.ID}})
	require.NoError(t, err)

	edges, err := store.GetComponentRelationships(ctx, a.ID, DirectionBoth)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, entity.RelDependsOn, edges[0].Relationship.Type)
}

func TestGetComponentRelationships_Direction(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	a := mustComponent(t, store, entity.KindFile, "a")
	b := mustComponent(t, store, entity.KindFile, "b")
	_, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelDependsOn, SourceID: a.ID, TargetID: b.ID})
	require.NoError(t, err)

	out, err := store.GetComponentRelationships(ctx, a.ID, DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, DirectionOutgoing, out[0].Direction)

	in, err := store.GetComponentRelationships(ctx, b.ID, DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, DirectionIncoming, in[0].Direction)

	none, err := store.GetComponentRelationships(ctx, b.ID, DirectionOutgoing)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetDependencyTree_BoundedByMaxDepth(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	a := mustComponent(t, store, entity.KindFile, "a")
	b := mustComponent(t, store, entity.KindFile, "b")
	c := mustComponent(t, store, entity.KindFile, "c")
	d := mustComponent(t, store, entity.KindFile, "d")

	for _, pair := range [][2]*entity.Component{{a, b}, {b, c}, {c, d}} {
		_, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelDependsOn, SourceID: pair[0].ID, TargetID: pair[1].ID})
		require.NoError(t, err)
	}

	paths, err := store.GetDependencyTree(ctx, a.ID, 2)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, paths[0].ComponentIDs)
}

func TestGetDependencyTree_DefaultDepthIsThree(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	a := mustComponent(t, store, entity.KindFile, "a")

	paths, err := store.GetDependencyTree(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{a.ID}, paths[0].ComponentIDs)
}

func TestDeleteRelationship(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	a := mustComponent(t, store, entity.KindFile, "a")
	b := mustComponent(t, store, entity.KindFile, "b")

	r, err := store.CreateRelationship(ctx, &entity.Relationship{Type: entity.RelDependsOn, SourceID: a.ID, TargetID: b.ID})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRelationship(ctx, r.ID))

	edges, err := store.GetComponentRelationships(ctx, a.ID, DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, edges)

	err = store.DeleteRelationship(ctx, r.ID)
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))
}
