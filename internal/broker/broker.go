package broker

import (
	"context"
	"sync"
	"time"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

// DefaultWaitTimeout is used when a caller does not specify one, per §6.
const DefaultWaitTimeout = 300 * time.Second

// DefaultHistoryCapacity bounds the audit ring buffer, per §6.
const DefaultHistoryCapacity = 1000

// EventSink receives broker lifecycle notifications for fan-out over the
// Event Bus (spec §4.5). Publish must never block the broker's critical
// section; implementations are expected to hand off to per-subscriber
// mailboxes, as the Event Bus does.
type EventSink interface {
	Publish(name string, payload any)
}

type noopSink struct{}

func (noopSink) Publish(string, any) {}

// waitResult is delivered to a waiter's channel exactly once.
type waitResult struct {
	command *Command
	err     *graphkeeperr.Error
}

type waiter struct {
	agentID   string
	filters   Filters
	startedAt time.Time
	resultCh  chan waitResult
	resolved  bool
}

// Broker owns the pending command queue, the waiter registry, and the
// bounded audit history. It is process-local and volatile per spec §1's
// Non-goals (no exactly-once delivery across restarts). All mutations to
// the queue/registry/history happen inside a single mutex, matching spec
// §5's "linearizable" requirement for broker scans.
type Broker struct {
	mu       sync.Mutex
	clock    *ids.Clock
	sink     EventSink
	pending  []*Command
	waiters  map[string]*waiter
	history  []HistoryEntry
	histCap  int
	waitedBy int // never read; waiter FIFO order comes from startedAt alone, which b.clock keeps strictly increasing
}

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithEventSink attaches an Event Bus sink for broker lifecycle events.
func WithEventSink(s EventSink) Option {
	return func(b *Broker) { b.sink = s }
}

// WithHistoryCapacity overrides the default bounded history size.
func WithHistoryCapacity(n int) Option {
	return func(b *Broker) { b.histCap = n }
}

// New creates an empty Broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		clock:   ids.NewClock(),
		sink:    noopSink{},
		waiters: make(map[string]*waiter),
		histCap: DefaultHistoryCapacity,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Broker) recordLocked(action entity.HistoryAction, agentID string, payload any) {
	entry := HistoryEntry{Timestamp: b.clock.Now(), Action: action, AgentID: agentID, Payload: payload}
	b.history = append(b.history, entry)
	if len(b.history) > b.histCap {
		b.history = b.history[len(b.history)-b.histCap:]
	}
}

// SendCommand implements spec §4.4 sendCommand. It returns whether the
// command was delivered synchronously and, if so, to which agent.
func (b *Broker) SendCommand(input CommandInput) (*Command, bool, string) {
	now := b.clock.Now()
	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}
	targets := make(map[string]bool, len(input.TargetComponentIDs))
	for _, id := range input.TargetComponentIDs {
		targets[id] = true
	}
	id := input.ID
	if id == "" {
		id = ids.NewRandom(ids.PrefixCommand)
	}
	cmd := &Command{
		ID:                 id,
		Type:               input.Type,
		Source:             input.Source,
		Payload:            input.Payload,
		Priority:           priority,
		TargetComponentIDs: targets,
		TaskType:           input.TaskType,
		CreatedAt:          now,
		Status:             entity.CommandPending,
	}

	b.mu.Lock()
	// Scan waiters in registration order; first acceptor wins (spec: FIFO by
	// registration time among eligible waiters).
	var winner *waiter
	for _, w := range b.orderedWaitersLocked() {
		if w.resolved {
			continue
		}
		if w.filters.Accepts(cmd) {
			winner = w
			break
		}
	}

	if winner != nil {
		cmd.Status = entity.CommandDelivered
		cmd.DeliveredTo = winner.agentID
		cmd.DeliveredAt = now
		winner.resolved = true
		delete(b.waiters, winner.agentID)
		b.recordLocked(entity.ActionCommandSent, winner.agentID, cmd)
		b.mu.Unlock()

		winner.resultCh <- waitResult{command: cmd}
		b.sink.Publish("command-delivered", cmd)
		return cmd, true, winner.agentID
	}

	b.pending = append(b.pending, cmd)
	b.recordLocked(entity.ActionCommandQueued, "", cmd)
	b.mu.Unlock()

	b.sink.Publish("command-queued", cmd)
	return cmd, false, ""
}

// orderedWaitersLocked returns waiters in registration order. Must be
// called with b.mu held.
func (b *Broker) orderedWaitersLocked() []*waiter {
	out := make([]*waiter, 0, len(b.waiters))
	for _, w := range b.waiters {
		out = append(out, w)
	}
	// Stable sort by startedAt; registrations within the same mutex hold use
	// a monotonic clock so ties cannot occur in practice.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].startedAt.Before(out[j-1].startedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// popBestPendingLocked removes and returns the highest-priority, earliest
// PENDING command accepted by filters, or nil. Must be called with b.mu held.
func (b *Broker) popBestPendingLocked(filters Filters) *Command {
	bestIdx := -1
	for i, c := range b.pending {
		if !filters.Accepts(c) {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		best := b.pending[bestIdx]
		if c.Priority.Rank() > best.Priority.Rank() {
			bestIdx = i
		} else if c.Priority.Rank() == best.Priority.Rank() && c.CreatedAt.Before(best.CreatedAt) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil
	}
	cmd := b.pending[bestIdx]
	b.pending = append(b.pending[:bestIdx], b.pending[bestIdx+1:]...)
	return cmd
}

// WaitForCommand implements spec §4.4 waitForCommand. It blocks until a
// matching command arrives, the wait is cancelled, the deadline elapses, or
// ctx is done (treated the same as cancellation).
func (b *Broker) WaitForCommand(ctx context.Context, in WaitInput) (*Command, error) {
	if in.AgentID == "" {
		return nil, graphkeeperr.New(graphkeeperr.Validation, "waitForCommand requires a non-empty agentId")
	}
	timeout := DefaultWaitTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}

	b.mu.Lock()

	// Step 1: an existing ACTIVE wait for this agent is superseded.
	if prev, ok := b.waiters[in.AgentID]; ok && !prev.resolved {
		prev.resolved = true
		delete(b.waiters, in.AgentID)
		b.recordLocked(entity.ActionWaitFailed, in.AgentID, "superseded by new wait")
		prevCh := prev.resultCh
		go func() {
			prevCh <- waitResult{err: graphkeeperr.New(graphkeeperr.WaitCancel, "superseded by new wait")}
		}()
	}

	// Step 2: try to satisfy immediately from the pending queue.
	if cmd := b.popBestPendingLocked(in.Filters); cmd != nil {
		cmd.Status = entity.CommandDelivered
		cmd.DeliveredTo = in.AgentID
		cmd.DeliveredAt = b.clock.Now()
		b.recordLocked(entity.ActionCommandReceived, in.AgentID, cmd)
		b.mu.Unlock()
		b.sink.Publish("command-delivered", cmd)
		return cmd, nil
	}

	// Step 3: register and suspend.
	w := &waiter{
		agentID:   in.AgentID,
		filters:   in.Filters,
		startedAt: b.clock.Now(),
		resultCh:  make(chan waitResult, 1),
	}
	b.waiters[in.AgentID] = w
	b.recordLocked(entity.ActionWaitStarted, in.AgentID, in.Filters)
	b.mu.Unlock()

	b.sink.Publish("agent-waiting", WaitingAgentView{AgentID: in.AgentID, Filters: in.Filters, StartedAt: w.startedAt})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.command, nil
	case <-timer.C:
		b.mu.Lock()
		if cur, ok := b.waiters[in.AgentID]; ok && cur == w && !w.resolved {
			w.resolved = true
			delete(b.waiters, in.AgentID)
			b.recordLocked(entity.ActionWaitFailed, in.AgentID, "timeout")
			b.mu.Unlock()
			return nil, graphkeeperr.New(graphkeeperr.WaitTimeout, "waitForCommand(%s) exceeded %s", in.AgentID, timeout)
		}
		b.mu.Unlock()
		// Resolved between the timer firing and acquiring the lock.
		res := <-w.resultCh
		if res.err != nil {
			return nil, res.err
		}
		return res.command, nil
	case <-ctx.Done():
		b.mu.Lock()
		if cur, ok := b.waiters[in.AgentID]; ok && cur == w && !w.resolved {
			w.resolved = true
			delete(b.waiters, in.AgentID)
			b.recordLocked(entity.ActionWaitFailed, in.AgentID, "context cancelled")
		}
		b.mu.Unlock()
		return nil, graphkeeperr.New(graphkeeperr.WaitCancel, "waitForCommand(%s): %v", in.AgentID, ctx.Err())
	}
}

// CancelWait implements spec §4.4 cancelWait: idempotent, no-op if unknown.
func (b *Broker) CancelWait(agentID string) bool {
	b.mu.Lock()
	w, ok := b.waiters[agentID]
	if !ok || w.resolved {
		b.mu.Unlock()
		return false
	}
	w.resolved = true
	delete(b.waiters, agentID)
	b.recordLocked(entity.ActionWaitFailed, agentID, "cancelled by external request")
	b.mu.Unlock()

	w.resultCh <- waitResult{err: graphkeeperr.New(graphkeeperr.WaitCancel, "cancelled by external request")}
	b.sink.Publish("agent-wait-cancelled", agentID)
	return true
}

// CancelCommand implements spec §4.4 cancelCommand: idempotent, no-op if
// terminal or unknown.
func (b *Broker) CancelCommand(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.pending {
		if c.ID == id {
			c.Status = entity.CommandCancelled
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			b.recordLocked(entity.ActionCommandCancelled, "", c)
			return true
		}
	}
	return false
}

// GetWaitingAgents implements spec §4.4 getWaitingAgents.
func (b *Broker) GetWaitingAgents() []WaitingAgentView {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	out := make([]WaitingAgentView, 0, len(b.waiters))
	for _, w := range b.orderedWaitersLocked() {
		out = append(out, WaitingAgentView{
			AgentID:   w.agentID,
			Filters:   w.filters,
			StartedAt: w.startedAt,
			Elapsed:   now.Sub(w.startedAt),
		})
	}
	return out
}

// GetPendingCommands implements spec §4.4 getPendingCommands: PENDING in
// queue insertion order (not priority order — priority order only governs
// how waitForCommand/sendCommand pick a match).
func (b *Broker) GetPendingCommands() []*Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Command, len(b.pending))
	copy(out, b.pending)
	return out
}

// GetHistory implements spec §4.4 getHistory: the newest `limit` entries.
func (b *Broker) GetHistory(limit int) []HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]HistoryEntry, limit)
	src := b.history[len(b.history)-limit:]
	for i := range src {
		out[i] = src[len(src)-1-i]
	}
	return out
}
