package control

import (
	"context"
	"sync"
	"time"

	"github.com/openlumen/keylightctl/internal/discovery"
	"github.com/openlumen/keylightctl/internal/elgato"
	"github.com/openlumen/keylightctl/internal/logging"
)

const (
	// DefaultFlushInterval is the minimum spacing between outbound
	// writes to one device. UI layers produce bursts of state changes
	// (slider drags); one write per interval is what the device sees.
	DefaultFlushInterval = 150 * time.Millisecond

	// DefaultRequestTimeout bounds each network call to a device.
	DefaultRequestTimeout = 2 * time.Second
)

// Session owns the control channel to one physical device. Desired
// states are coalesced: at most one write per flush interval leaves the
// session, carrying the most recently requested state.
//
// After a transport failure the session is degraded: pending changes
// keep buffering but nothing is written until a successful FetchState
// confirms the device is reachable again.
type Session struct {
	// identity is fixed at construction; Rebind changes the network
	// target, never the device the session stands for.
	identity string
	client   *elgato.Client

	mu       sync.Mutex
	record   discovery.Record
	pending  *elgato.DeviceState
	state    elgato.DeviceState
	hasState bool
	degraded bool

	flushInterval time.Duration

	wake      chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session bound to the device in record and
// starts its flush loop. Pass zero durations for the defaults.
func NewSession(ctx context.Context, record discovery.Record, flushInterval, requestTimeout time.Duration) *Session {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	client := elgato.NewClient(record.Host, record.Port)
	client.SetTimeout(requestTimeout)

	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		identity:      record.Identity,
		record:        record,
		client:        client,
		flushInterval: flushInterval,
		wake:          make(chan struct{}, 1),
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	go s.run(ctx)

	return s
}

// Identity returns the stable device identity this session is bound to.
func (s *Session) Identity() string {
	return s.identity
}

// Record returns the discovery record the session is currently bound to.
func (s *Session) Record() discovery.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// RequestState records desired as the pending change for this device,
// replacing any prior pending value, and schedules a flush. It never
// blocks and never performs network I/O; out-of-range values are
// rejected here, before anything is buffered.
func (s *Session) RequestState(desired elgato.DeviceState) error {
	if err := elgato.ValidateState(desired); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = &desired
	s.mu.Unlock()

	s.wakeFlusher()
	return nil
}

// FetchState issues an immediate read and returns the device's
// confirmed state. A successful read updates the cache, clears the
// degraded flag, and re-schedules any buffered pending change.
func (s *Session) FetchState(ctx context.Context) (elgato.DeviceState, error) {
	state, err := s.client.FetchState(ctx)
	if err != nil {
		if elgato.IsUnreachable(err) {
			s.markDegraded()
		}
		return elgato.DeviceState{}, err
	}

	s.mu.Lock()
	s.state = state
	s.hasState = true
	wasDegraded := s.degraded
	s.degraded = false
	hasPending := s.pending != nil
	s.mu.Unlock()

	if wasDegraded {
		logging.LogSessionStatus(s.identity, false)
	}
	if hasPending {
		s.wakeFlusher()
	}

	return state, nil
}

// State returns the last known device state and whether one has been
// confirmed or optimistically cached yet.
func (s *Session) State() (elgato.DeviceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.hasState
}

// Degraded reports whether flushes are currently suppressed after a
// transport failure.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// AccessoryInfo reads identity and firmware information from the device.
func (s *Session) AccessoryInfo(ctx context.Context) (*elgato.AccessoryInfo, error) {
	return s.client.AccessoryInfo(ctx)
}

// Rebind points the session at a new network target without disturbing
// the pending change or the flush schedule.
func (s *Session) Rebind(record discovery.Record) {
	s.client.Rebind(record.Host, record.Port)
	s.mu.Lock()
	s.record = record
	s.mu.Unlock()
}

// Close stops the flush loop, cancels any in-flight call, and drops
// the pending change. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	})
}

// wakeFlusher nudges the flush loop. The buffered channel makes this
// non-blocking; a wake that is already queued is enough.
func (s *Session) wakeFlusher() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the session's flush loop. The timer is armed only while a
// pending change exists; the session is otherwise idle.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.flushInterval)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			if armed {
				timer.Stop()
			}
			return

		case <-s.wake:
			if !armed && s.flushable() {
				timer.Reset(s.flushInterval)
				armed = true
			}

		case <-timer.C:
			armed = false
			s.flush(ctx)
			if s.flushable() {
				timer.Reset(s.flushInterval)
				armed = true
			}
		}
	}
}

// flushable reports whether the flush timer should be armed: there is
// a pending change and the session is not degraded.
func (s *Session) flushable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil && !s.degraded
}

// flush sends the latest pending change to the device. On success the
// cached state is updated optimistically (a later FetchState corrects
// it); on transport failure the change is re-buffered and the session
// degrades.
func (s *Session) flush(ctx context.Context) {
	s.mu.Lock()
	if s.pending == nil || s.degraded {
		s.mu.Unlock()
		return
	}
	desired := *s.pending
	s.pending = nil
	s.mu.Unlock()

	err := s.client.PutState(ctx, desired)
	logging.LogFlush(s.identity, desired.String(), err)

	if err != nil {
		if elgato.IsUnreachable(err) {
			// Keep the change buffered unless a newer one arrived while
			// the call was in flight.
			s.mu.Lock()
			if s.pending == nil {
				s.pending = &desired
			}
			s.mu.Unlock()
			s.markDegraded()
		}
		return
	}

	s.mu.Lock()
	s.state = desired
	s.hasState = true
	s.mu.Unlock()
}

// markDegraded suppresses further flushes until a successful fetch.
func (s *Session) markDegraded() {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()

	if !already {
		logging.LogSessionStatus(s.identity, true)
	}
}
