package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

func TestCreateComment_RequiresExistingParent(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.CreateComment(context.Background(), &entity.Comment{ParentID: "missing", Content: "hi", Author: "u"})
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))
}

func TestCreateComment_AttachesToTaskOrComponent(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	c := mustComponent(t, store, entity.KindFile, "a")
	_, err := store.CreateComment(ctx, &entity.Comment{ParentID: c.ID, Content: "on a component", Author: "u"})
	require.NoError(t, err)

	task, err := store.CreateTask(ctx, &entity.Task{Name: "t"})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, &entity.Comment{ParentID: task.ID, Content: "on a task", Author: "u"})
	require.NoError(t, err)
}

func TestGetNodeComments_NewestFirstAndLimited(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	c := mustComponent(t, store, entity.KindFile, "a")

	var ids []string
	for i := 0; i < 3; i++ {
		cm, err := store.CreateComment(ctx, &entity.Comment{ParentID: c.ID, Content: "hi", Author: "u"})
		require.NoError(t, err)
		ids = append(ids, cm.ID)
	}

	comments, err := store.GetNodeComments(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, ids[2], comments[0].ID, "newest first")

	limited, err := store.GetNodeComments(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateAndDeleteComment(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	c := mustComponent(t, store, entity.KindFile, "a")
	cm, err := store.CreateComment(ctx, &entity.Comment{ParentID: c.ID, Content: "hi", Author: "u"})
	require.NoError(t, err)

	updated, err := store.UpdateComment(ctx, cm.ID, "updated content", nil)
	require.NoError(t, err)
	assert.Equal(t, "updated content", updated.Content)
	assert.NotEmpty(t, updated.Updated)

	require.NoError(t, store.DeleteComment(ctx, cm.ID))
	_, err = store.GetComment(ctx, cm.ID)
	assert.Equal(t, graphkeeperr.NotFound, graphkeeperr.KindOf(err))
}

func TestCreateComment_RejectsEmptyContent(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	c := mustComponent(t, store, entity.KindFile, "a")
	_, err := store.CreateComment(ctx, &entity.Comment{ParentID: c.ID, Content: "", Author: "u"})
	assert.Equal(t, graphkeeperr.Validation, graphkeeperr.KindOf(err))
}
