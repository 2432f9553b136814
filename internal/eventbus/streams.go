package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	// StreamGraphEvents is the JetStream stream for Graph Store mutation
	// events (component/relationship/task creates, updates, bulk creates).
	StreamGraphEvents = "GRAPH_EVENTS"

	// StreamBrokerEvents is the JetStream stream for Command Broker
	// lifecycle events (queued/delivered/waiting/cancelled).
	StreamBrokerEvents = "BROKER_EVENTS"

	// SubjectGraphPrefix is the subject prefix for Graph Store events.
	SubjectGraphPrefix = "graph."

	// SubjectBrokerPrefix is the subject prefix for Command Broker events.
	SubjectBrokerPrefix = "broker."
)

// SubjectForEvent returns the NATS subject for a given event name: broker
// events use "broker.<name>", everything else uses "graph.<name>".
func SubjectForEvent(name Name) string {
	if name.IsBrokerEvent() {
		return SubjectBrokerPrefix + string(name)
	}
	return SubjectGraphPrefix + string(name)
}

// EnsureStreams creates the JetStream streams this package publishes to, if
// they do not already exist. Called once during daemon startup when NATS is
// enabled (SPEC_FULL domain stack, C8 Event Bus).
func EnsureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:     StreamGraphEvents,
			Subjects: []string{SubjectGraphPrefix + ">"},
			Storage:  nats.FileStorage,
			MaxMsgs:  100_000,
			MaxBytes: 256 << 20,
		},
		{
			Name:     StreamBrokerEvents,
			Subjects: []string{SubjectBrokerPrefix + ">"},
			Storage:  nats.FileStorage,
			MaxMsgs:  100_000,
			MaxBytes: 256 << 20,
		},
	}
	for _, cfg := range streams {
		if _, err := js.StreamInfo(cfg.Name); err != nil {
			if _, err := js.AddStream(&cfg); err != nil {
				return fmt.Errorf("create %s stream: %w", cfg.Name, err)
			}
		}
	}
	return nil
}
