package mqtt

import (
	"errors"

	"github.com/sweeney/thermostat/internal/logic"
)

var errFakeClosed = errors.New("mqtt: fake publisher closed")

// Message is one publish as it would reach the broker.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakePublisher records published events for test assertions. It mirrors
// the topics, QoS and retained flags RealPublisher uses.
type FakePublisher struct {
	// Events and SystemEvents hold what was published, in order.
	Events       []logic.Event
	SystemEvents []SystemEvent

	// Payloads and SystemPayloads hold the formatted JSON of each.
	Payloads       [][]byte
	SystemPayloads [][]byte

	// Messages holds every publish across both topics, in order.
	Messages []Message

	// PublishError and PublishSystemError, if set, are returned instead of recording.
	PublishError       error
	PublishSystemError error

	// Closed tracks if Close was called; later publishes fail.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the module event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	if f.Closed {
		return errFakeClosed
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	f.Messages = append(f.Messages, Message{Topic: Topic, Payload: payload})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	if f.Closed {
		return errFakeClosed
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	f.Messages = append(f.Messages, Message{Topic: TopicSystem, QoS: 1, Retained: event.Retained, Payload: payload})
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports the Connected field.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// EventsFor returns the recorded events of one module, in publish order.
func (f *FakePublisher) EventsFor(module logic.Module) []logic.Event {
	var out []logic.Event
	for _, e := range f.Events {
		if e.Module == module {
			out = append(out, e)
		}
	}
	return out
}

// SystemEventNames returns the Event field of each recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Retained returns the last retained payload per topic, as a broker would
// hand it to a new subscriber.
func (f *FakePublisher) Retained() map[string][]byte {
	out := make(map[string][]byte)
	for _, m := range f.Messages {
		if m.Retained {
			out[m.Topic] = m.Payload
		}
	}
	return out
}

// Reset clears recorded messages, errors and flags.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
