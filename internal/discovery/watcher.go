package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/openlumen/keylightctl/internal/logging"
)

const (
	// ServiceType is the mDNS service type Key Lights advertise under.
	ServiceType = "_elg._tcp"

	// ServiceDomain is the mDNS domain (typically "local.").
	ServiceDomain = "local."

	// DefaultPort is the HTTP control port when the announcement carries
	// no port.
	DefaultPort = 9123

	// DefaultBrowseInterval is how long each browse session runs before
	// it is restarted with a fresh query. Restarting refreshes the
	// last-seen timestamps of devices that are still present.
	DefaultBrowseInterval = 45 * time.Second

	// DefaultExpireAfter is how long a device may go unannounced before
	// it is considered gone. Three missed browse sessions.
	DefaultExpireAfter = 3 * DefaultBrowseInterval
)

// Watcher listens for Key Light service announcements and emits an
// infinite sequence of Added/Updated/Removed events. A Watcher is not
// restartable: after Stop a new one must be constructed.
type Watcher struct {
	serviceType    string
	domain         string
	browseInterval time.Duration
	expireAfter    time.Duration

	resolver *zeroconf.Resolver
	events   chan Event

	// known is touched only by the run goroutine; per-identity event
	// ordering follows from that single ownership.
	known map[string]Record

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	started  bool
	stopped  bool
}

// NewWatcher creates a watcher for the Key Light service type with
// default intervals.
func NewWatcher() *Watcher {
	return &Watcher{
		serviceType:    ServiceType,
		domain:         ServiceDomain,
		browseInterval: DefaultBrowseInterval,
		expireAfter:    DefaultExpireAfter,
		events:         make(chan Event, 16),
		known:          make(map[string]Record),
		done:           make(chan struct{}),
	}
}

// Start binds the mDNS resolver and begins listening. Failure to
// construct the resolver (no usable multicast interface) is the one
// fatal error; everything after that is retried internally. Start may
// be called once.
func (w *Watcher) Start(ctx context.Context) error {
	if w.started {
		return fmt.Errorf("watcher already started")
	}
	// A stopped watcher has already closed its event channel.
	if w.stopped {
		return fmt.Errorf("watcher already stopped")
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to bind mDNS resolver: %w", err)
	}
	w.resolver = resolver

	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true

	go w.run(ctx)

	logging.Info("Discovery started",
		zap.String("service", w.serviceType),
		zap.Duration("browse_interval", w.browseInterval),
		zap.Duration("expire_after", w.expireAfter),
	)

	return nil
}

// Events returns the event sequence. The channel is closed only when
// the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop releases listening resources and closes the event channel.
// Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.stopped = true
		if !w.started {
			close(w.events)
			close(w.done)
			return
		}
		w.cancel()
		<-w.done
		logging.Info("Discovery stopped")
	})
}

// run is the single goroutine that owns the known-device map and the
// event channel.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	defer close(w.done)

	// Sweep for expired devices at a fraction of the expiry window so
	// removal latency stays bounded.
	sweep := time.NewTicker(w.expireAfter / 3)
	defer sweep.Stop()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go w.browseLoop(ctx, entries)

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-entries:
			w.handleEntry(ctx, entry)
		case <-sweep.C:
			w.expire(ctx)
		}
	}
}

// browseLoop keeps a browse session alive, restarting it at the browse
// interval to refresh sightings, and backing off exponentially after
// transient failures.
func (w *Watcher) browseLoop(ctx context.Context, out chan<- *zeroconf.ServiceEntry) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0 // never give up

	for ctx.Err() == nil {
		session := make(chan *zeroconf.ServiceEntry, 16)
		sessionCtx, cancel := context.WithTimeout(ctx, w.browseInterval)

		if err := w.resolver.Browse(sessionCtx, w.serviceType, w.domain, session); err != nil {
			cancel()
			wait := bo.NextBackOff()
			logging.Warn("mDNS browse failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()

		// Browse closes the session channel when its context ends.
		for entry := range session {
			select {
			case out <- entry:
			case <-ctx.Done():
				cancel()
				return
			}
		}
		cancel()
	}
}

// handleEntry reconciles one service announcement against the known
// map and emits the resulting event, if any.
func (w *Watcher) handleEntry(ctx context.Context, entry *zeroconf.ServiceEntry) {
	record, ok := parseEntry(entry)
	if !ok {
		logging.Debug("Ignoring malformed announcement",
			zap.String("instance", entry.Instance),
			zap.String("hostname", entry.HostName),
		)
		return
	}

	// TTL 0 is a goodbye announcement.
	if entry.TTL == 0 {
		if last, exists := w.known[record.Identity]; exists {
			delete(w.known, record.Identity)
			logging.LogDiscoveryEvent("removed", record.Identity, record.Addr())
			w.emit(ctx, Event{Type: Removed, Record: last})
		}
		return
	}

	previous, exists := w.known[record.Identity]
	w.known[record.Identity] = record

	switch {
	case !exists:
		logging.LogDiscoveryEvent("added", record.Identity, record.Addr())
		w.emit(ctx, Event{Type: Added, Record: record})
	case !previous.sameTarget(record):
		logging.LogDiscoveryEvent("updated", record.Identity, record.Addr())
		w.emit(ctx, Event{Type: Updated, Record: record})
	default:
		// Plain re-announcement: the stored record already carries the
		// refreshed LastSeen, no event needed.
	}
}

// expire removes devices that have gone silent.
func (w *Watcher) expire(ctx context.Context) {
	cutoff := time.Now().Add(-w.expireAfter)
	for identity, record := range w.known {
		if record.LastSeen.Before(cutoff) {
			delete(w.known, identity)
			logging.LogDiscoveryEvent("expired", identity, record.Addr())
			w.emit(ctx, Event{Type: Removed, Record: record})
		}
	}
}

// emit delivers an event, giving up only at shutdown.
func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// parseEntry converts a zeroconf service entry to a Record. Returns
// ok=false when the entry is unusable (no instance name or address).
func parseEntry(entry *zeroconf.ServiceEntry) (Record, bool) {
	if entry.Instance == "" {
		return Record{}, false
	}

	// Prefer IPv4; Key Lights advertise both.
	var host string
	for _, addr := range entry.AddrIPv4 {
		host = addr.String()
		break
	}
	if host == "" && len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}
	if host == "" {
		return Record{}, false
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return Record{
		Identity: entry.Instance,
		Name:     entry.Instance,
		Host:     host,
		Port:     port,
		LastSeen: time.Now(),
	}, true
}

// Collect performs a one-shot scan: it browses for the given duration
// and returns every device seen, for callers that want a device list
// rather than an event stream.
func Collect(ctx context.Context, timeout time.Duration) ([]Record, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to bind mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Browse first: it closes the entries channel when its context ends,
	// so the drainer below is started only once that is guaranteed.
	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	seen := make(map[string]Record)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if record, ok := parseEntry(entry); ok && entry.TTL > 0 {
				seen[record.Identity] = record
			}
		}
	}()

	<-ctx.Done()
	<-done

	records := make([]Record, 0, len(seen))
	for _, record := range seen {
		records = append(records, record)
	}
	return records, nil
}
