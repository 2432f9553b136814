// Package broker implements the Command Broker (spec §4.4): a rendezvous
// queue matching commands to waiting agents under per-agent filters,
// priority, timeout, and cancellation, with a bounded audit history.
//
// The wait/deliver rendezvous is a mutex-protected registry of waiters, each
// holding a buffered result channel that a writer (SendCommand delivering a
// command, CancelWait, or a newer WaitForCommand from the same agent
// superseding the wait) sends into at most once.
package broker

import (
	"time"

	"github.com/graphkeep/graphkeep/internal/entity"
)

// Filters selects which commands a waiting agent accepts. A nil/empty field
// accepts everything for that dimension.
type Filters struct {
	TaskTypes    map[string]bool
	ComponentIDs map[string]bool
	MinPriority  entity.Priority
}

// Accepts reports whether cmd satisfies every present filter field.
func (f Filters) Accepts(cmd *Command) bool {
	if len(f.TaskTypes) > 0 {
		if !f.TaskTypes[cmd.TaskType] {
			return false
		}
	}
	if len(f.ComponentIDs) > 0 {
		matched := false
		for id := range cmd.TargetComponentIDs {
			if f.ComponentIDs[id] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.MinPriority != "" {
		if !cmd.Priority.AtLeast(f.MinPriority) {
			return false
		}
	}
	return true
}

// Command is a PendingCommand (spec §3) once assigned an id and timestamp.
type Command struct {
	ID                 string
	Type               string
	Source             string
	Payload            entity.Metadata
	Priority           entity.Priority
	TargetComponentIDs map[string]bool
	TaskType           string
	CreatedAt          time.Time
	Status             entity.CommandStatus
	DeliveredTo        string
	DeliveredAt        time.Time
}

// CommandInput is the caller-supplied shape for sendCommand; fields left
// zero are assigned defaults per spec §4.4 step 1.
type CommandInput struct {
	ID                 string
	Type               string
	Source             string
	Payload            entity.Metadata
	Priority           entity.Priority
	TargetComponentIDs []string
	TaskType           string
}

// WaitInput is the caller-supplied shape for waitForCommand.
type WaitInput struct {
	AgentID   string
	TimeoutMs int64
	Filters   Filters
}

// WaitingAgentView is the read-only snapshot returned by getWaitingAgents.
type WaitingAgentView struct {
	AgentID   string
	Filters   Filters
	StartedAt time.Time
	Elapsed   time.Duration
}

// HistoryEntry is one BrokerHistoryEntry (spec §3).
type HistoryEntry struct {
	Timestamp time.Time
	Action    entity.HistoryAction
	AgentID   string
	Payload   any
}
