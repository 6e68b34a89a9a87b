package discovery

import (
	"fmt"
	"time"
)

// Record describes one discovered Key Light on the network. Records
// are value types: on re-resolution the watcher replaces the whole
// record, it never patches fields in place.
type Record struct {
	// Identity is the mDNS service instance name. It is stable across
	// address changes and unique on the local network, which makes it
	// the registry key.
	Identity string

	// Name is the human-readable device name (e.g., "Elgato Key Light 12AB").
	Name string

	// Host is the IPv4 (preferred) or IPv6 address.
	Host string

	// Port is the HTTP control port (typically 9123).
	Port int

	// LastSeen is when the most recent announcement for this device was
	// observed.
	LastSeen time.Time
}

// String returns a human-readable representation of the record.
func (r Record) String() string {
	return fmt.Sprintf("%s at %s:%d", r.Identity, r.Host, r.Port)
}

// Addr returns the host:port control endpoint.
func (r Record) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// sameTarget reports whether two records point at the same network
// endpoint. The watcher emits Updated only when this is false.
func (r Record) sameTarget(other Record) bool {
	return r.Host == other.Host && r.Port == other.Port
}

// EventType classifies a discovery event.
type EventType int

const (
	// Added is emitted the first time an identity is observed.
	Added EventType = iota
	// Updated is emitted when a known identity re-announces with a new
	// host or port.
	Updated
	// Removed is emitted on a goodbye announcement (TTL 0) or when an
	// identity has not been re-announced within the expiry window.
	Removed
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one element of the watcher's event sequence. For Removed
// events the Record is the last known record of the departed device.
//
// Events for the same identity are delivered in the order the
// underlying announcements were observed. No ordering is guaranteed
// between events for different identities.
type Event struct {
	Type   EventType
	Record Record
}
