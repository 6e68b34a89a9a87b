package control

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openlumen/keylightctl/internal/discovery"
	"github.com/openlumen/keylightctl/internal/elgato"
	"github.com/openlumen/keylightctl/internal/logging"
)

// DefaultRefreshInterval is how often sessions reconcile their cached
// state against the device. Reconciliation also recovers degraded
// sessions once the device answers again.
const DefaultRefreshInterval = 30 * time.Second

// NotificationType classifies a registry notification.
type NotificationType int

const (
	// DeviceAvailable is published when a session is created for a
	// newly discovered device.
	DeviceAvailable NotificationType = iota
	// DeviceGone is published when a device's session is torn down.
	DeviceGone
)

// String returns a human-readable name for the notification type.
func (t NotificationType) String() string {
	switch t {
	case DeviceAvailable:
		return "device_available"
	case DeviceGone:
		return "device_gone"
	default:
		return "unknown"
	}
}

// Notification tells subscribers about a device joining or leaving.
type Notification struct {
	Type   NotificationType
	Record discovery.Record
}

// DeviceInfo is a point-in-time snapshot of one managed device.
type DeviceInfo struct {
	Record   discovery.Record
	State    elgato.DeviceState
	HasState bool
	Degraded bool
}

// Options configures a Registry. Zero values select defaults.
type Options struct {
	FlushInterval   time.Duration
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
}

// Registry maps stable device identities to live sessions, reconciling
// discovery events against them. The Run goroutine is the single
// writer of the identity-to-session map; there is at most one live
// session per identity at any time.
type Registry struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session

	subsMu  sync.Mutex
	subs    map[int]chan Notification
	nextSub int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
		subs:     make(map[int]chan Notification),
	}
}

// Run consumes the discovery event sequence until ctx is cancelled or
// the channel closes, then tears down every session. It is the only
// goroutine that mutates the session map.
func (r *Registry) Run(ctx context.Context, events <-chan discovery.Event) {
	refresh := time.NewTicker(r.opts.RefreshInterval)
	defer refresh.Stop()
	defer r.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)

		case <-refresh.C:
			r.refreshAll(ctx)
		}
	}
}

// handleEvent applies one discovery event to the session map.
func (r *Registry) handleEvent(ctx context.Context, ev discovery.Event) {
	switch ev.Type {
	case discovery.Added:
		r.add(ctx, ev.Record)

	case discovery.Updated:
		r.mu.RLock()
		session, exists := r.sessions[ev.Record.Identity]
		r.mu.RUnlock()
		if !exists {
			// Missed the Added event (e.g., watcher started before us).
			r.add(ctx, ev.Record)
			return
		}
		session.Rebind(ev.Record)
		logging.Debug("Session rebound",
			zap.String("device", ev.Record.Identity),
			zap.String("addr", ev.Record.Addr()),
		)

	case discovery.Removed:
		r.mu.Lock()
		session, exists := r.sessions[ev.Record.Identity]
		if exists {
			delete(r.sessions, ev.Record.Identity)
		}
		r.mu.Unlock()
		if !exists {
			return
		}
		session.Close()
		logging.Info("Session closed",
			zap.String("device", ev.Record.Identity),
		)
		r.notify(Notification{Type: DeviceGone, Record: ev.Record})
	}
}

// add creates a session for a new identity. A duplicate Added event
// for a live identity is ignored.
func (r *Registry) add(ctx context.Context, record discovery.Record) {
	r.mu.Lock()
	if _, exists := r.sessions[record.Identity]; exists {
		r.mu.Unlock()
		return
	}
	session := NewSession(ctx, record, r.opts.FlushInterval, r.opts.RequestTimeout)
	r.sessions[record.Identity] = session
	r.mu.Unlock()

	logging.Info("Session created",
		zap.String("device", record.Identity),
		zap.String("addr", record.Addr()),
	)

	// Initial sync; failure just leaves the session degraded until the
	// next refresh.
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		defer cancel()
		_, _ = session.FetchState(fetchCtx)
	}()

	r.notify(Notification{Type: DeviceAvailable, Record: record})
}

// refreshAll reconciles every session's cached state with its device.
// Each fetch runs in its own goroutine so one slow device cannot delay
// the others or the event loop.
func (r *Registry) refreshAll(ctx context.Context) {
	for _, session := range r.snapshotSessions() {
		go func(s *Session) {
			fetchCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
			defer cancel()
			_, _ = s.FetchState(fetchCtx)
		}(session)
	}
}

// Get returns the live session for an identity, if any.
func (r *Registry) Get(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[identity]
	return session, ok
}

// Snapshot returns a point-in-time view of every managed device,
// sorted by identity.
func (r *Registry) Snapshot() []DeviceInfo {
	sessions := r.snapshotSessions()

	infos := make([]DeviceInfo, 0, len(sessions))
	for _, session := range sessions {
		state, hasState := session.State()
		infos = append(infos, DeviceInfo{
			Record:   session.Record(),
			State:    state,
			HasState: hasState,
			Degraded: session.Degraded(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Record.Identity < infos[j].Record.Identity
	})
	return infos
}

// Subscribe registers for device available/gone notifications. The
// returned cancel function unregisters and closes the channel.
func (r *Registry) Subscribe() (<-chan Notification, func()) {
	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Notification, 16)
	r.subs[id] = ch
	r.subsMu.Unlock()

	cancel := func() {
		r.subsMu.Lock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
		r.subsMu.Unlock()
	}
	return ch, cancel
}

// notify fans a notification out to subscribers. A full subscriber
// buffer drops the notification rather than blocking the event loop.
func (r *Registry) notify(n Notification) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for _, sub := range r.subs {
		select {
		case sub <- n:
		default:
			logging.Warn("Dropping notification for slow subscriber",
				zap.String("type", n.Type.String()),
				zap.String("device", n.Record.Identity),
			)
		}
	}
}

// snapshotSessions copies the current session list under the read lock.
func (r *Registry) snapshotSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// closeAll tears down every session and publishes gone notifications.
func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
		r.notify(Notification{Type: DeviceGone, Record: session.Record()})
	}
}
