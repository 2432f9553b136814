package graphstore

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/journal"
)

type sourceCtxKey struct{}

// WithSource tags ctx with the ChangeSource every journal entry appended
// during this call chain should carry. replayToTimestamp uses this to mark
// its replayed mutations entity.SourceReplay rather than the default
// entity.SourceAPI, without threading a source parameter through every
// Store method.
func WithSource(ctx context.Context, source entity.ChangeSource) context.Context {
	return context.WithValue(ctx, sourceCtxKey{}, source)
}

func sourceFromContext(ctx context.Context, fallback entity.ChangeSource) entity.ChangeSource {
	if s, ok := ctx.Value(sourceCtxKey{}).(entity.ChangeSource); ok && s != "" {
		return s
	}
	return fallback
}

func journalCreateInput(ctx context.Context, op entity.Operation, kind entity.EntityKind, entityID string, after any) journal.AppendInput {
	return journal.AppendInput{Operation: op, EntityKind: kind, EntityID: entityID, After: after, Source: sourceFromContext(ctx, entity.SourceAPI)}
}

func journalUpdateInput(ctx context.Context, op entity.Operation, kind entity.EntityKind, entityID string, before, after any) journal.AppendInput {
	return journal.AppendInput{Operation: op, EntityKind: kind, EntityID: entityID, Before: before, After: after, Source: sourceFromContext(ctx, entity.SourceAPI)}
}

func journalDeleteInput(ctx context.Context, op entity.Operation, kind entity.EntityKind, entityID string, before any) journal.AppendInput {
	return journal.AppendInput{Operation: op, EntityKind: kind, EntityID: entityID, Before: before, Source: sourceFromContext(ctx, entity.SourceAPI)}
}

func journalBulkInput(ctx context.Context, op entity.Operation, kind entity.EntityKind, entityID string, after any, totalCount int) journal.AppendInput {
	return journal.AppendInput{
		Operation: op, EntityKind: kind, EntityID: entityID, After: after, Source: sourceFromContext(ctx, entity.SourceBulk),
		Metadata: entity.Metadata{"bulkOperation": true, "totalCount": float64(totalCount)},
	}
}
