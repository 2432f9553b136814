// Package eventbus implements the Event Bus (spec §4.5): an in-process
// publish/subscribe fan-out for Graph Store mutations and Command Broker
// lifecycle events. Delivery to each subscriber goes through a bounded
// mailbox so a slow subscriber can never block the publisher; a subscriber
// whose mailbox is full is dropped and the drop is logged, per §6's
// isolation requirement.
//
// The optional JetStream fan-out below (SetJetStream, fire-and-forget with
// errors only logged) persists core events to NATS for durability and
// remote consumption, alongside in-process mailbox delivery.
package eventbus

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/graphkeep/graphkeep/internal/ids"
)

func marshalEvent(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}

// Bus dispatches named events to subscribed mailboxes and, optionally,
// fans them out to NATS JetStream for durability and remote consumption.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string]*Subscription
	js          nats.JetStreamContext
	clock       *ids.Clock
	mailboxSize int
}

// New creates an empty Bus. mailboxSize <= 0 uses DefaultMailboxBound.
func New(mailboxSize int) *Bus {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxBound
	}
	return &Bus{
		subs:        make(map[string]*Subscription),
		clock:       ids.NewClock(),
		mailboxSize: mailboxSize,
	}
}

// SetJetStream attaches a JetStream context for durable event publishing.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

// JetStreamEnabled reports whether JetStream publishing is configured.
func (b *Bus) JetStreamEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.js != nil
}

// Subscribe registers a new mailbox under id, replacing any prior
// subscription with the same id.
func (b *Bus) Subscribe(id string) *Subscription {
	sub := &Subscription{id: id, events: make(chan Event, b.mailboxSize), bus: b}
	b.mu.Lock()
	if prev, ok := b.subs[id]; ok {
		close(prev.events)
	}
	b.subs[id] = sub
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.events)
	}
}

// Publish fans name/payload out to every subscriber's mailbox and, if
// configured, to JetStream. Publish never blocks on a subscriber: a full
// mailbox causes that subscriber to be dropped (unsubscribed) with an error
// log, per spec §6.
func (b *Bus) Publish(name Name, payload any) {
	evt := Event{Name: name, Payload: payload, Timestamp: b.clock.Now()}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	js := b.js
	b.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.events <- evt:
		default:
			log.Printf("eventbus: subscriber %q mailbox full, dropping subscriber", s.id)
			b.unsubscribe(s.id)
		}
	}

	if js != nil {
		b.publishToJetStream(js, evt)
	}
}

// publishToJetStream mirrors the event to NATS JetStream. Errors are logged
// but never propagated: JetStream is supplementary to in-process delivery,
// not a prerequisite for it.
func (b *Bus) publishToJetStream(js nats.JetStreamContext, evt Event) {
	subject := SubjectForEvent(evt.Name)
	data, err := marshalEvent(evt)
	if err != nil {
		log.Printf("eventbus: failed to marshal event %s for JetStream: %v", evt.Name, err)
		return
	}
	ack, err := js.Publish(subject, data)
	if err != nil {
		log.Printf("eventbus: JetStream publish to %s failed: %v", subject, err)
		return
	}
	log.Printf("eventbus: JetStream published to %s (stream=%s seq=%d)", subject, ack.Stream, ack.Sequence)
}

// SubscriberCount returns the number of live subscriptions, for status
// reporting.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// BrokerSink adapts a Bus to the broker.EventSink interface (Publish(name
// string, payload any)), so the Command Broker can fan its lifecycle events
// out through the same bus as Graph Store mutations without depending on
// this package directly.
type BrokerSink struct{ Bus *Bus }

// Publish implements broker.EventSink.
func (s BrokerSink) Publish(name string, payload any) {
	s.Bus.Publish(Name(name), payload)
}
