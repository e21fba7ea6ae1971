// Package events is a small synchronous pub/sub bus used to decouple the
// handshake and PROXY decoders from anything that wants to observe them —
// metrics, logging, admin tooling — without those packages importing each
// other directly.
package events

import (
	"net/netip"
	"sync"
)

// Type identifies a category of gateway event.
type Type int

const (
	TypePingReceived Type = iota
	TypeOCR1Accepted
	TypeOCR1Rejected
	TypeOCR2Accepted
	TypeOCR2CookieMismatch
	TypeOCR2NoPending
	TypeOCR2AlreadyConnected
	TypeHandshakeCompleted
	TypeProxyHeaderDecoded
	TypeProxyHeaderRejected
)

// Event is a single occurrence on the bus. Data is a type-specific
// payload (e.g. a PROXY error-kind string, an MTU value); subscribers type-assert
// the fields they care about.
type Event struct {
	Type   Type
	Remote netip.AddrPort
	Data   interface{}
}

// Handler processes one event. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus dispatches events to registered handlers. It is safe for
// concurrent Subscribe and Publish calls from multiple goroutines, unlike
// a bare map-backed registry: the gateway's read loop publishes from
// whichever goroutine is servicing a given datagram.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewBus returns a ready, empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers handler for events of the given type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// Publish invokes every handler registered for e.Type with e. Handlers
// are snapshotted under the read lock so a concurrent Subscribe never
// races with an in-flight Publish's iteration.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
