// Package control manages live sessions to discovered Key Light
// devices.
//
// A Session owns the HTTP control channel to one device. Writes are
// throttled: RequestState buffers the desired state (replacing any
// earlier buffered value) and a per-session flush loop sends at most
// one request per flush interval, so a slider drag producing hundreds
// of state changes reaches the device as a handful of writes. After a
// transport failure the session degrades and stops writing until a
// successful FetchState confirms the device is back; this keeps an
// unplugged light from being hammered with retries.
//
// The Registry consumes the discovery event sequence and keeps exactly
// one session per device identity: created on Added, rebound on
// Updated, torn down on Removed. Its Run goroutine is the single
// writer of the session map; other components only hold session
// references handed out by Get or Snapshot, and learn about devices
// joining and leaving through Subscribe.
//
// Tearing down one session cancels only that session's flush loop and
// in-flight calls. Cancelling the context passed to Run tears down the
// whole subsystem.
package control
