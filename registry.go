package dsu

import (
	"errors"

	"github.com/google/uuid"
)

// DeviceID is a stable, opaque handle assigned to a device when it is
// registered. Subscription indices key on DeviceID rather than the
// device's own identity, an arena + stable-id scheme: IDs are minted
// with github.com/google/uuid rather than held as raw pointers, so a
// subscription entry never outlives the device it names as anything
// other than an inert, comparable value.
type DeviceID uuid.UUID

// ErrServerFull is returned by AddDevice when SlotsPerServer devices are
// already registered.
var ErrServerFull = errors.New("dsu: server full")

// ErrAlreadyServing is returned by AddDevice when the given Device is
// already registered on this server.
var ErrAlreadyServing = errors.New("dsu: device already registered")

// deviceSlot is one occupied slot in the registry.
type deviceSlot struct {
	id     DeviceID
	device Device
	sub    DeviceSubscription
}

// deviceRegistry holds the ordered sequence of registered devices plus
// the reverse index from identity to slot. Insertion order defines slot
// id; removal shifts higher slots down.
//
// Not safe for concurrent use: all registry mutation happens on the
// server's single event-loop goroutine.
type deviceRegistry struct {
	slots   []deviceSlot
	byID    map[DeviceID]int // index into slots
	byValue map[Device]DeviceID
}

func newDeviceRegistry() *deviceRegistry {
	return &deviceRegistry{
		byID:    make(map[DeviceID]int),
		byValue: make(map[Device]DeviceID),
	}
}

// Add validates and registers d, returning the DeviceID assigned to it.
func (r *deviceRegistry) Add(d Device, sub DeviceSubscription) (DeviceID, error) {
	if _, already := r.byValue[d]; already {
		return DeviceID{}, ErrAlreadyServing
	}
	if len(r.slots) >= SlotsPerServer {
		return DeviceID{}, ErrServerFull
	}
	id := DeviceID(uuid.New())
	r.slots = append(r.slots, deviceSlot{id: id, device: d, sub: sub})
	r.byID[id] = len(r.slots) - 1
	r.byValue[d] = id
	return id, nil
}

// Lookup returns the device and subscription registered under id without
// removing it, so a caller can fire removal notifications while the
// device is still present in the registry.
func (r *deviceRegistry) Lookup(id DeviceID) (Device, DeviceSubscription, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return nil, nil, false
	}
	s := r.slots[idx]
	return s.device, s.sub, true
}

// Remove detaches and removes the device with the given id, returning
// its subscription handle for the caller to Close, and shifts higher
// slots down to keep slot ids contiguous.
func (r *deviceRegistry) Remove(id DeviceID) (Device, DeviceSubscription, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return nil, nil, false
	}
	removed := r.slots[idx]
	r.slots = append(r.slots[:idx], r.slots[idx+1:]...)
	delete(r.byID, id)
	delete(r.byValue, removed.device)
	for i := idx; i < len(r.slots); i++ {
		r.byID[r.slots[i].id] = i
	}
	return removed.device, removed.sub, true
}

// SlotOf returns the current slot id for a registered device.
func (r *deviceRegistry) SlotOf(id DeviceID) (uint8, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return 0, false
	}
	return uint8(idx), true
}

// AtSlot returns the device and its id currently occupying slot, if any.
func (r *deviceRegistry) AtSlot(slot uint8) (DeviceID, Device, bool) {
	if int(slot) >= len(r.slots) {
		return DeviceID{}, nil, false
	}
	s := r.slots[slot]
	return s.id, s.device, true
}

// Count returns the number of currently registered devices.
func (r *deviceRegistry) Count() int { return len(r.slots) }

// Get returns the device registered under id, if any.
func (r *deviceRegistry) Get(id DeviceID) (Device, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.slots[idx].device, true
}

// All returns every registered (id, device) pair, in slot order.
func (r *deviceRegistry) All() []struct {
	ID     DeviceID
	Device Device
} {
	out := make([]struct {
		ID     DeviceID
		Device Device
	}, len(r.slots))
	for i, s := range r.slots {
		out[i] = struct {
			ID     DeviceID
			Device Device
		}{ID: s.id, Device: s.device}
	}
	return out
}

// ByMAC returns the ids of every registered device whose MAC equals mac.
func (r *deviceRegistry) ByMAC(mac uint64) []DeviceID {
	var out []DeviceID
	for _, s := range r.slots {
		if s.device.GetMAC() == mac {
			out = append(out, s.id)
		}
	}
	return out
}
