package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/graphstore"
)

// ReplayEntryResult reports what happened when one journal entry was
// replayed (or, for a dry run, what would happen).
type ReplayEntryResult struct {
	Operation entity.Operation `json:"operation"`
	EntityID  string           `json:"entityId"`
	Applied   bool             `json:"applied"`
	Reason    string           `json:"reason,omitempty"`
}

// ReplayResult is replayToTimestamp's full outcome.
type ReplayResult struct {
	Entries []ReplayEntryResult `json:"entries"`
	DryRun  bool                `json:"dryRun"`
}

// ReplayToTimestamp chronologically applies every journal entry with
// timestamp <= targetTimestamp to a freshly emptied graph, via
// graphstore.Store operations tagged entity.SourceReplay (spec §4.3's
// replay mapping table). A dry run only returns the ordered plan. A
// non-dry-run continues past individual entry failures, reporting each
// outcome; DELETE_RELATIONSHIP against an already-absent edge is reported
// failed rather than aborting the run.
func (e *Engine) ReplayToTimestamp(ctx context.Context, targetTimestamp string, dryRun bool) (*ReplayResult, error) {
	events, err := e.journal.GetChangesByTimeRange(ctx, "", targetTimestamp, 0)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{DryRun: dryRun}
	if dryRun {
		for _, ev := range events {
			result.Entries = append(result.Entries, ReplayEntryResult{Operation: ev.Operation, EntityID: ev.EntityID, Applied: true})
		}
		return result, nil
	}

	if err := e.backend.WithTx(ctx, func(tx *sql.Tx) error {
		return e.backend.TruncateGraph(ctx, tx)
	}); err != nil {
		return nil, err
	}

	ctx = graphstore.WithSource(ctx, entity.SourceReplay)
	for _, ev := range events {
		applied, reason := e.applyReplayEntry(ctx, ev)
		result.Entries = append(result.Entries, ReplayEntryResult{
			Operation: ev.Operation,
			EntityID:  ev.EntityID,
			Applied:   applied,
			Reason:    reason,
		})
	}
	return result, nil
}

func (e *Engine) applyReplayEntry(ctx context.Context, ev *entity.ChangeEvent) (applied bool, reason string) {
	switch ev.Operation {
	case entity.OpCreateComponent:
		var c entity.Component
		if err := unmarshalState(ev.AfterState, &c); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateComponent(ctx, &c)
		return outcome(err)

	case entity.OpUpdateComponent:
		var c entity.Component
		if err := unmarshalState(ev.AfterState, &c); err != nil {
			return false, err.Error()
		}
		_, err := e.store.UpdateComponent(ctx, ev.EntityID, &c)
		return outcome(err)

	case entity.OpDeleteComponent:
		err := e.store.DeleteComponent(ctx, ev.EntityID)
		return outcome(err)

	case entity.OpCreateRelationship:
		var r entity.Relationship
		if err := unmarshalState(ev.AfterState, &r); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateRelationship(ctx, &r)
		return outcome(err)

	case entity.OpDeleteRelationship:
		err := e.store.DeleteRelationship(ctx, ev.EntityID)
		if graphkeeperr.KindOf(err) == graphkeeperr.NotFound {
			return false, "edge already absent"
		}
		return outcome(err)

	case entity.OpCreateTask:
		var t entity.Task
		if err := unmarshalState(ev.AfterState, &t); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateTask(ctx, &t)
		return outcome(err)

	case entity.OpUpdateTask:
		var t entity.Task
		if err := unmarshalState(ev.AfterState, &t); err != nil {
			return false, err.Error()
		}
		progress := t.Progress
		_, err := e.store.UpdateTaskStatus(ctx, ev.EntityID, t.Status, &progress)
		return outcome(err)

	case entity.OpCreateComment:
		var c entity.Comment
		if err := unmarshalState(ev.AfterState, &c); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateComment(ctx, &c)
		return outcome(err)

	case entity.OpUpdateComment:
		var c entity.Comment
		if err := unmarshalState(ev.AfterState, &c); err != nil {
			return false, err.Error()
		}
		_, err := e.store.UpdateComment(ctx, ev.EntityID, c.Content, c.Metadata)
		return outcome(err)

	case entity.OpDeleteComment:
		err := e.store.DeleteComment(ctx, ev.EntityID)
		return outcome(err)

	case entity.OpCreateComponentsBulk:
		var c entity.Component
		if err := unmarshalState(ev.AfterState, &c); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateComponent(ctx, &c)
		return outcome(err)

	case entity.OpCreateRelationshipsBulk:
		var r entity.Relationship
		if err := unmarshalState(ev.AfterState, &r); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateRelationship(ctx, &r)
		return outcome(err)

	case entity.OpCreateTasksBulk:
		var t entity.Task
		if err := unmarshalState(ev.AfterState, &t); err != nil {
			return false, err.Error()
		}
		_, err := e.store.CreateTask(ctx, &t)
		return outcome(err)

	default:
		return false, "unsupported operation for replay: " + string(ev.Operation)
	}
}

func outcome(err error) (bool, string) {
	if err != nil {
		return false, err.Error()
	}
	return true, ""
}

func unmarshalState(state string, out any) error {
	if state == "" {
		return graphkeeperr.New(graphkeeperr.Internal, "replay entry has no afterState")
	}
	if err := json.Unmarshal([]byte(state), out); err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode journal entry state")
	}
	return nil
}
