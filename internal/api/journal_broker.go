package api

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/broker"
	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/journal"
	"github.com/graphkeep/graphkeep/internal/snapshot"
)

// --- Journal & Snapshots ---

// ChangeHistoryQuery is getChangeHistory's recognized filter shape (spec §6).
type ChangeHistoryQuery struct {
	EntityID  string
	Limit     int
	Operation entity.Operation
}

func (f *Facade) GetChangeHistory(ctx context.Context, q ChangeHistoryQuery) ([]*entity.ChangeEvent, error) {
	if q.EntityID != "" {
		return f.Journal.GetEntityHistory(ctx, q.EntityID, q.Limit)
	}
	var ops []entity.Operation
	if q.Operation != "" {
		ops = []entity.Operation{q.Operation}
	}
	return f.Journal.GetRecentChanges(ctx, q.Limit, ops)
}

func (f *Facade) CreateSnapshot(ctx context.Context, name, description string) (*entity.Snapshot, error) {
	return f.Snapshot.CreateSnapshot(ctx, name, description)
}

func (f *Facade) ListSnapshots(ctx context.Context) ([]*entity.Snapshot, error) {
	return f.Snapshot.ListSnapshots(ctx)
}

func (f *Facade) GetSnapshot(ctx context.Context, id string) (*entity.Snapshot, error) {
	return f.Snapshot.GetSnapshot(ctx, id)
}

// RestoreSnapshotInput is restoreSnapshot's input shape (spec §6).
type RestoreSnapshotInput struct {
	ID     string
	DryRun bool
}

func (f *Facade) RestoreSnapshot(ctx context.Context, in RestoreSnapshotInput) (*snapshot.RestoreResult, error) {
	return f.Snapshot.RestoreFromSnapshot(ctx, in.ID, in.DryRun)
}

// ReplayToTimestampInput is replayToTimestamp's input shape (spec §6).
type ReplayToTimestampInput struct {
	Timestamp string
	DryRun    bool
}

func (f *Facade) ReplayToTimestamp(ctx context.Context, in ReplayToTimestampInput) (*snapshot.ReplayResult, error) {
	return f.Snapshot.ReplayToTimestamp(ctx, in.Timestamp, in.DryRun)
}

func (f *Facade) GetHistoryStats(ctx context.Context) (*journal.Stats, error) {
	return f.Journal.GetStats(ctx)
}

// --- Broker ---

func (f *Facade) SendCommand(input broker.CommandInput) (*broker.Command, bool, string) {
	return f.Broker.SendCommand(input)
}

func (f *Facade) WaitForCommand(ctx context.Context, in broker.WaitInput) (*broker.Command, error) {
	return f.Broker.WaitForCommand(ctx, in)
}

func (f *Facade) GetWaitingAgents() []broker.WaitingAgentView {
	return f.Broker.GetWaitingAgents()
}

func (f *Facade) GetPendingCommands() []*broker.Command {
	return f.Broker.GetPendingCommands()
}

func (f *Facade) CancelCommand(id string) bool {
	return f.Broker.CancelCommand(id)
}

func (f *Facade) CancelWait(agentID string) bool {
	return f.Broker.CancelWait(agentID)
}

func (f *Facade) GetCommandHistory(limit int) []broker.HistoryEntry {
	return f.Broker.GetHistory(limit)
}
