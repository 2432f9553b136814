package eventbus

import "time"

// Name identifies one of the core's published event kinds (spec §4.5).
type Name string

const (
	ComponentCreated Name = "component-created"
	ComponentUpdated Name = "component-updated"
	ComponentDeleted Name = "component-deleted"

	RelationshipCreated Name = "relationship-created"

	TaskCreated Name = "task-created"
	TaskUpdated Name = "task-updated"

	ComponentsBulkCreated    Name = "components-bulk-created"
	RelationshipsBulkCreated Name = "relationships-bulk-created"
	TasksBulkCreated         Name = "tasks-bulk-created"

	CommandQueued        Name = "command-queued"
	CommandDelivered     Name = "command-delivered"
	AgentWaiting         Name = "agent-waiting"
	AgentWaitCancelled   Name = "agent-wait-cancelled"
)

// bulkEvents names carry a BulkPayload instead of a bare record, per §4.5
// ("Event payloads are the same records described in §3 plus, for bulk
// events, {items, count}").
var bulkEvents = map[Name]bool{
	ComponentsBulkCreated:    true,
	RelationshipsBulkCreated: true,
	TasksBulkCreated:         true,
}

// IsBulk reports whether n carries a BulkPayload wrapper.
func (n Name) IsBulk() bool { return bulkEvents[n] }

// brokerEvents names originate from the Command Broker (C7) rather than the
// Graph Store (C4); used only to route JetStream subjects.
var brokerEvents = map[Name]bool{
	CommandQueued:      true,
	CommandDelivered:   true,
	AgentWaiting:       true,
	AgentWaitCancelled: true,
}

// IsBrokerEvent reports whether n originates from the Command Broker.
func (n Name) IsBrokerEvent() bool { return brokerEvents[n] }

// BulkPayload wraps the items and count carried by a *-bulk-created event.
type BulkPayload struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// Event is one published notification: a name, an arbitrary record payload
// (a Component/Relationship/Task/etc., or a BulkPayload), and the wall-clock
// time it was published.
type Event struct {
	Name      Name  `json:"name"`
	Payload   any   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
