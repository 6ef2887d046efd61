package market

import (
	"sync"

	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/internal/eventbus"
	"github.com/cnergy/cnergy/internal/mailbox"
)

// Fanout delivers engine notifications. Owner-directed messages go to
// per-participant unbounded mailboxes, which preserves per-recipient FIFO
// order and never drops; observer events go to a best-effort bus consumed by
// the dashboard, the metrics collector and the MQTT bridge.
type Fanout struct {
	mu    sync.RWMutex
	boxes map[model.Ref]*mailbox.Mailbox[wire.Message]
	bus   *eventbus.Bus
}

// NewFanout creates an empty fan-out.
func NewFanout() *Fanout {
	return &Fanout{
		boxes: make(map[model.Ref]*mailbox.Mailbox[wire.Message]),
		bus:   eventbus.New(),
	}
}

// Register creates (or returns) the mailbox for ref. Participants register
// before sending their first order so no notification can be lost.
func (f *Fanout) Register(ref model.Ref) *mailbox.Mailbox[wire.Message] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if box, ok := f.boxes[ref]; ok {
		return box
	}
	box := mailbox.New[wire.Message]()
	f.boxes[ref] = box
	return box
}

// Send delivers the message to ref's mailbox. Messages to unknown refs are
// dropped: a stale address is harmless, not an error.
func (f *Fanout) Send(ref model.Ref, msg wire.Message) {
	f.mu.RLock()
	box := f.boxes[ref]
	f.mu.RUnlock()
	if box != nil {
		box.Push(msg)
	}
}

// Broadcast delivers the message to every registered participant.
func (f *Fanout) Broadcast(msg wire.Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, box := range f.boxes {
		box.Push(msg)
	}
}

// Publish emits an event on the observer bus.
func (f *Fanout) Publish(e eventbus.Event) { f.bus.Publish(e) }

// Observe subscribes to the observer bus.
func (f *Fanout) Observe(buffer int) <-chan eventbus.Event { return f.bus.Subscribe(buffer) }

// Unobserve removes an observer subscription.
func (f *Fanout) Unobserve(sub <-chan eventbus.Event) { f.bus.Unsubscribe(sub) }

// Close shuts down the observer bus.
func (f *Fanout) Close() { f.bus.Close() }
