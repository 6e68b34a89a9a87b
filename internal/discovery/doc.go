// Package discovery provides mDNS-based discovery of Elgato Key Light
// devices.
//
// Key Lights advertise themselves under the "_elg._tcp" service type.
// The Watcher listens for those announcements and turns them into a
// lazy, infinite event sequence:
//
//	Added    first sighting of a device
//	Updated  a known device re-announced with a new address or port
//	Removed  goodbye announcement (TTL 0) or expiry after silence
//
// # Usage Example
//
//	w := discovery.NewWatcher()
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err) // no usable multicast interface
//	}
//	defer w.Stop()
//
//	for ev := range w.Events() {
//	    fmt.Printf("%s: %s\n", ev.Type, ev.Record)
//	}
//
// # Failure Semantics
//
// Failing to bind the mDNS resolver is the single fatal error and is
// reported by Start. Everything after that - a dropped interface, a
// failed browse session - is retried internally with exponential
// backoff and never surfaced to the consumer.
//
// Events for the same identity are delivered in announcement order.
// Malformed announcements are logged and skipped without affecting
// other devices.
//
// # Network Requirements
//
// Requires multicast support on the network interface and devices on
// the same local network segment; mDNS uses UDP port 5353.
package discovery
