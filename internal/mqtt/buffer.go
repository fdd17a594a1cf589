package mqtt

import (
	"log"
	"sync"

	"github.com/sweeney/thermostat/internal/ring"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 100

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable. Once full, the
// oldest message is dropped. Safe for concurrent use.
type outbox struct {
	mu     sync.Mutex
	buf    *ring.Buffer[bufferedMsg]
	warned bool
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = DefaultBufferSize
	}
	return &outbox{buf: ring.New[bufferedMsg](capacity)}
}

func (o *outbox) push(msg bufferedMsg) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Push(msg)
	if o.buf.Overflowed() && !o.warned {
		log.Printf("mqtt: buffer full (%d messages), dropping oldest", o.buf.Cap())
		o.warned = true
	}
}

// flush sends buffered messages oldest first. On the first failure the
// unsent messages are put back in order and flush stops.
func (o *outbox) flush(send func(bufferedMsg) error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	msgs := o.buf.Drain()
	o.warned = false
	for i, msg := range msgs {
		if err := send(msg); err != nil {
			for _, rest := range msgs[i:] {
				o.buf.Push(rest)
			}
			return i, err
		}
	}
	return len(msgs), nil
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Len()
}
