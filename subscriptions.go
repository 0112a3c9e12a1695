package dsu

import (
	"net"
	"time"
)

// clientKey uniquely identifies one client's subscription to one device.
// Device identity is DeviceID, the stable registry handle, never a raw
// pointer or the device's MAC (two devices may share MAC 0).
type clientKey struct {
	ClientID uint32
	Device   DeviceID
}

// ClientRecord is the per-subscription bookkeeping entry.
type ClientRecord struct {
	Addr            *net.UDPAddr
	ClientID        uint32
	LastRequestTime time.Time
}

// subscriptionTable is the multi-indexed map: clients keyed by
// (client_id, device), plus reverse indices from device to subscribers
// and from client to subscribed devices, plus a lazily created
// per-client packet counter.
//
// Not safe for concurrent use: mutated only from the server's event-loop
// goroutine.
type subscriptionTable struct {
	clients         map[clientKey]*ClientRecord
	deviceToClients map[DeviceID]map[clientKey]*ClientRecord
	clientToDevices map[uint32]map[DeviceID]struct{}
	packetCounters  map[uint32]uint32

	now func() time.Time
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{
		clients:         make(map[clientKey]*ClientRecord),
		deviceToClients: make(map[DeviceID]map[clientKey]*ClientRecord),
		clientToDevices: make(map[uint32]map[DeviceID]struct{}),
		packetCounters:  make(map[uint32]uint32),
		now:             time.Now,
	}
}

// Register creates or refreshes the subscription for (clientID, device).
// Addr is always updated, tolerating a client's source port changing
// across NAT rebinds.
func (t *subscriptionTable) Register(clientID uint32, device DeviceID, addr *net.UDPAddr) {
	key := clientKey{ClientID: clientID, Device: device}
	now := t.now()

	if rec, exists := t.clients[key]; exists {
		rec.LastRequestTime = now
		rec.Addr = addr
		return
	}

	rec := &ClientRecord{Addr: addr, ClientID: clientID, LastRequestTime: now}
	t.clients[key] = rec

	if t.deviceToClients[device] == nil {
		t.deviceToClients[device] = make(map[clientKey]*ClientRecord)
	}
	t.deviceToClients[device][key] = rec

	if t.clientToDevices[clientID] == nil {
		t.clientToDevices[clientID] = make(map[DeviceID]struct{})
	}
	t.clientToDevices[clientID][device] = struct{}{}

	if _, ok := t.packetCounters[clientID]; !ok {
		t.packetCounters[clientID] = 0
	}
}

// ClientsFor returns every ClientRecord currently subscribed to device.
func (t *subscriptionTable) ClientsFor(device DeviceID) []*ClientRecord {
	subs := t.deviceToClients[device]
	if len(subs) == 0 {
		return nil
	}
	out := make([]*ClientRecord, 0, len(subs))
	for _, rec := range subs {
		out = append(out, rec)
	}
	return out
}

// ClientCount returns the number of distinct (client, device) subscriptions.
func (t *subscriptionTable) ClientCount() int { return len(t.clients) }

// CounterCount returns the number of client ids with a live packet counter.
func (t *subscriptionTable) CounterCount() int { return len(t.packetCounters) }

// NextPacketNumber returns the next sequence number for clientID and
// increments the counter. Wraps silently on overflow.
func (t *subscriptionTable) NextPacketNumber(clientID uint32) uint32 {
	n := t.packetCounters[clientID]
	t.packetCounters[clientID] = n + 1
	return n
}

// sweepResult reports what a Sweep pass removed, for metrics.
type sweepResult struct {
	ExpiredClients int
	PurgedCounters int
}

// Sweep removes subscriptions idle for longer than RequestTimeout, then
// purges any packet counter left with no surviving subscription.
// Ordering matters: step 1 (expire) runs fully before step 2 (purge
// counters) so a just-expired client's counter is reclaimed in the same
// pass.
func (t *subscriptionTable) Sweep() sweepResult {
	now := t.now()
	var result sweepResult

	for key, rec := range t.clients {
		if now.Sub(rec.LastRequestTime) <= RequestTimeout {
			continue
		}
		if !t.unregister(key) {
			panic("dsu: subscription index inconsistency during sweep")
		}
		result.ExpiredClients++
	}

	for clientID := range t.packetCounters {
		if len(t.clientToDevices[clientID]) == 0 {
			delete(t.packetCounters, clientID)
			result.PurgedCounters++
		}
	}
	return result
}

// unregister removes one (clientID, device) subscription from all three
// indices. Returns false if the key was present in fewer than all three
// indices, which indicates a programmer error.
func (t *subscriptionTable) unregister(key clientKey) bool {
	if _, ok := t.clients[key]; !ok {
		return false
	}
	delete(t.clients, key)

	devClients, ok := t.deviceToClients[key.Device]
	if !ok {
		return false
	}
	if _, ok := devClients[key]; !ok {
		return false
	}
	delete(devClients, key)
	if len(devClients) == 0 {
		delete(t.deviceToClients, key.Device)
	}

	clientDevices, ok := t.clientToDevices[key.ClientID]
	if !ok {
		return false
	}
	if _, ok := clientDevices[key.Device]; !ok {
		return false
	}
	delete(clientDevices, key.Device)
	if len(clientDevices) == 0 {
		delete(t.clientToDevices, key.ClientID)
	}

	return true
}
