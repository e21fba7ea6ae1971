package offline

import (
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// pendingTTL is the lifetime of an unanswered OCR1: a client that never
// follows up with OCR2 within this window is forgotten.
const pendingTTL = 10 * time.Second

// PendingConnection tracks the state between OPEN_CONNECTION_REQUEST_1 and
// OPEN_CONNECTION_REQUEST_2 for a single remote address.
type PendingConnection struct {
	Remote          netip.AddrPort
	ProtocolVersion byte
	ClientMTU       uint16
	Cookie          uint32
	HasCookie       bool
	lastTouched     time.Time
}

func (p *PendingConnection) expired(now time.Time) bool {
	return now.Sub(p.lastTouched) > pendingTTL
}

// PendingTable is a sync.Map-backed, TTL-expiring table of in-flight
// handshakes keyed by remote address. A background ticker sweeps expired
// entries; Sweep is also exposed so tests (and callers needing a
// deterministic sweep point) can trigger it synchronously. Concurrent
// sweep triggers are coalesced through a singleflight.Group so a sweep
// storm from many idle ticks and manual calls collapses into one pass.
type PendingTable struct {
	entries sync.Map // netip.AddrPort -> *PendingConnection
	sf      singleflight.Group

	stop chan struct{}
	once sync.Once
}

// NewPendingTable starts the background sweep ticker and returns a ready
// table. Callers must call Close when done to stop the ticker goroutine.
func NewPendingTable() *PendingTable {
	t := &PendingTable{stop: make(chan struct{})}
	go t.sweepLoop()
	return t
}

func (t *PendingTable) sweepLoop() {
	ticker := time.NewTicker(pendingTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-t.stop:
			return
		}
	}
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (t *PendingTable) Close() {
	t.once.Do(func() { close(t.stop) })
}

// Put inserts or replaces the pending entry for remote, stamping the
// touch time to now.
func (t *PendingTable) Put(remote netip.AddrPort, p *PendingConnection) {
	p.Remote = remote
	p.lastTouched = time.Now()
	t.entries.Store(remote, p)
}

// Get returns the pending entry for remote, if present and not expired.
// An expired-but-not-yet-swept entry is treated as absent.
func (t *PendingTable) Get(remote netip.AddrPort) (*PendingConnection, bool) {
	v, ok := t.entries.Load(remote)
	if !ok {
		return nil, false
	}
	p := v.(*PendingConnection)
	if p.expired(time.Now()) {
		return nil, false
	}
	return p, true
}

// Delete removes the pending entry for remote, e.g. once OCR2 completes
// the handshake and a session takes over.
func (t *PendingTable) Delete(remote netip.AddrPort) {
	t.entries.Delete(remote)
}

// Sweep removes all expired entries. Concurrent callers (the ticker and
// any manual trigger) share a single in-flight pass.
func (t *PendingTable) Sweep() {
	_, _, _ = t.sf.Do("sweep", func() (interface{}, error) {
		now := time.Now()
		t.entries.Range(func(key, value interface{}) bool {
			p := value.(*PendingConnection)
			if p.expired(now) {
				t.entries.Delete(key)
			}
			return true
		})
		return nil, nil
	})
}

// Len reports the number of entries currently stored, expired or not.
// Intended for tests and metrics, not for hot-path decisions.
func (t *PendingTable) Len() int {
	n := 0
	t.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
