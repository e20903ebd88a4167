// Package companion implements the mock companion-device connectivity layer:
// a connection-lifecycle manager that tracks advertised services, owns
// simulated peer connections, and dispatches connect/disconnect notifications
// to registered applications with deterministic ordering and idempotence
// guarantees. No radio is involved; simulation triggers drive everything.
package companion

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesim/internal/journal"
	"github.com/srg/blesim/internal/registry"
)

// Options configures a Manager.
type Options struct {
	// RequireAdvertisement makes SimulateConnect fail with
	// ErrNoAdvertisedServices while nothing is advertised. Off by default: a
	// test harness may drive connections without ever advertising.
	RequireAdvertisement bool

	// EventBuffer is the capacity of the lifecycle event feed. Zero selects
	// the default.
	EventBuffer int
}

// DefaultOptions returns the default manager options.
func DefaultOptions() *Options {
	return &Options{
		RequireAdvertisement: false,
		EventBuffer:          64,
	}
}

// Metrics is a snapshot of manager dispatch counters.
type Metrics struct {
	HooksDispatched int64
	HookFailures    int64
	EventsPublished int64
}

// registration is one notification target, captured with its capabilities at
// registration time.
type registration struct {
	app        any
	name       string
	connect    ConnectObserver
	disconnect DisconnectObserver
}

// Manager orchestrates the service registry and the per-device mock
// connection lifecycle, and fans lifecycle notifications out to registered
// applications synchronously, in registration order.
//
// All state mutations are serialized behind a single mutex; observer hooks
// run outside the lock on snapshots, so a hook may call back into the
// manager without deadlocking.
type Manager struct {
	mu       sync.Mutex
	services *registry.ServiceRegistry
	conns    *hashmap.Map[string, Connection]
	apps     []registration

	opts   Options
	logger *logrus.Logger
	events *journal.Ring[journal.Event]
	seq    uint64

	hooksDispatched int64
	hookFailures    int64
	eventsPublished int64
}

// NewManager creates a manager with the given options. A nil opts selects
// defaults; a nil logger gets a quiet default instance.
func NewManager(opts *Options, logger *logrus.Logger) *Manager {
	effective := DefaultOptions()
	if opts != nil {
		*effective = *opts
	}
	if effective.EventBuffer <= 0 {
		effective.EventBuffer = DefaultOptions().EventBuffer
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}

	return &Manager{
		services: registry.NewServiceRegistry(),
		conns:    hashmap.New[string, Connection](),
		opts:     *effective,
		logger:   logger,
		events:   journal.NewRing[journal.Event](effective.EventBuffer),
	}
}

// ----------------------------
// Application registration
// ----------------------------

// RegisterApplication adds app to the ordered notification list if it
// implements at least one observer capability. Registering the same
// application twice is idempotent; an application with no hooks is skipped
// silently (absence of hooks is not an error). Returns true when the
// application is (or already was) registered.
//
// The manager never owns application lifetime; it only holds the interface
// value for dispatch.
func (m *Manager) RegisterApplication(app any) bool {
	if app == nil {
		return false
	}

	conn, hasConnect := app.(ConnectObserver)
	disc, hasDisconnect := app.(DisconnectObserver)
	if !hasConnect && !hasDisconnect {
		m.logger.WithField("app", appName(app)).Debug("Application exposes no companion hooks, skipping registration")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, reg := range m.apps {
		if reg.app == app {
			return true // duplicate registration, keep original position
		}
	}

	m.apps = append(m.apps, registration{
		app:        app,
		name:       appName(app),
		connect:    conn,
		disconnect: disc,
	})
	m.logger.WithFields(logrus.Fields{
		"app":            appName(app),
		"has_connect":    hasConnect,
		"has_disconnect": hasDisconnect,
	}).Debug("Application registered for companion notifications")
	return true
}

// Applications returns the registered application names in dispatch order.
func (m *Manager) Applications() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.apps))
	for i, reg := range m.apps {
		names[i] = reg.name
	}
	return names
}

// ----------------------------
// Service advertisement
// ----------------------------

// AdvertiseService makes the named service discoverable to a connecting
// companion. A nil metadata map defaults to empty; re-advertising an existing
// name replaces its metadata.
func (m *Manager) AdvertiseService(name string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.services.Advertise(name, metadata); err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"service":  name,
		"metadata": metadata,
	}).Debug("Advertising service")
	return nil
}

// RevokeService stops advertising the named service. Revoking an absent name
// is a no-op, reported through the return value.
func (m *Manager) RevokeService(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.services.Revoke(name)
	if removed {
		m.logger.WithField("service", name).Debug("Stopped advertising service")
	}
	return removed
}

// StopAdvertising revokes every advertised service.
func (m *Manager) StopAdvertising() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services.RevokeAll()
	m.logger.Debug("Cleared all advertised services")
}

// Services returns a snapshot of advertised services in insertion order.
func (m *Manager) Services() []registry.ServiceDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.services.List()
}

// ----------------------------
// Simulation triggers
// ----------------------------

// SimulateConnect simulates an incoming connection from the companion peer
// identified by deviceID. If the device is already connected this is an
// idempotent no-op returning the existing connection without re-dispatching.
// Otherwise a fresh Connected connection is created and OnCompanionConnect is
// dispatched to every registered application in registration order.
//
// The transitioned result reports whether a state change (and dispatch)
// actually happened.
func (m *Manager) SimulateConnect(deviceID string) (conn Connection, transitioned bool, err error) {
	return m.SimulateConnectWithMetadata(deviceID, nil)
}

// SimulateConnectWithMetadata is SimulateConnect with descriptive metadata
// attached to the new connection. Metadata is ignored when the device is
// already connected.
func (m *Manager) SimulateConnectWithMetadata(deviceID string, metadata map[string]string) (Connection, bool, error) {
	if strings.TrimSpace(deviceID) == "" {
		return Connection{}, false, &registry.ValidationError{Field: "device id", Reason: "must not be empty"}
	}

	m.mu.Lock()

	if m.opts.RequireAdvertisement && m.services.Len() == 0 {
		m.mu.Unlock()
		return Connection{}, false, fmt.Errorf("cannot connect %q: %w", deviceID, ErrNoAdvertisedServices)
	}

	if existing, ok := m.conns.Get(deviceID); ok && existing.State == StateConnected {
		m.mu.Unlock()
		m.logger.WithField("device_id", deviceID).Debug("Device already connected, ignoring duplicate connect")
		return existing.snapshot(), false, nil
	}

	conn := Connection{
		ID:          uuid.NewString(),
		DeviceID:    deviceID,
		Metadata:    metadata,
		State:       StateConnected,
		ConnectedAt: time.Now(),
	}
	conn = conn.snapshot() // own the metadata map
	m.conns.Set(deviceID, conn)

	targets := make([]registration, len(m.apps))
	copy(targets, m.apps)
	m.mu.Unlock()

	m.logger.WithField("device_id", deviceID).Info("Mock companion connected")
	m.publish(journal.EventConnected, conn)

	for _, reg := range targets {
		if reg.connect == nil {
			continue
		}
		m.dispatch(reg.name, "connect", conn, func() error {
			return reg.connect.OnCompanionConnect(conn.snapshot())
		})
	}

	return conn.snapshot(), true, nil
}

// SimulateDisconnect simulates the companion peer identified by deviceID
// disconnecting. When no Connected connection exists for deviceID this is an
// idempotent no-op: nothing is dispatched and no error is returned, so a
// disconnect can never be spurious or double-fired.
func (m *Manager) SimulateDisconnect(deviceID string) (Connection, bool, error) {
	if strings.TrimSpace(deviceID) == "" {
		return Connection{}, false, &registry.ValidationError{Field: "device id", Reason: "must not be empty"}
	}

	m.mu.Lock()

	existing, ok := m.conns.Get(deviceID)
	if !ok || existing.State != StateConnected {
		m.mu.Unlock()
		m.logger.WithField("device_id", deviceID).Debug("Disconnect requested without an active connection, ignoring")
		return Connection{}, false, nil
	}

	existing.State = StateDisconnected
	existing.DisconnectedAt = time.Now()
	m.conns.Set(deviceID, existing)

	targets := make([]registration, len(m.apps))
	copy(targets, m.apps)
	m.mu.Unlock()

	m.logger.WithField("device_id", deviceID).Info("Mock companion disconnected")
	m.publish(journal.EventDisconnected, existing)

	for _, reg := range targets {
		if reg.disconnect == nil {
			continue
		}
		m.dispatch(reg.name, "disconnect", existing, func() error {
			return reg.disconnect.OnCompanionDisconnect(existing.snapshot())
		})
	}

	return existing.snapshot(), true, nil
}

// ----------------------------
// Connection introspection
// ----------------------------

// ActiveConnection returns the live Connected connection for deviceID, if any.
func (m *Manager) ActiveConnection(deviceID string) (Connection, bool) {
	conn, ok := m.conns.Get(deviceID)
	if !ok || conn.State != StateConnected {
		return Connection{}, false
	}
	return conn.snapshot(), true
}

// Lookup returns the most recent connection for deviceID in any state.
// Disconnected connections are retained for historical lookup until reaped.
func (m *Manager) Lookup(deviceID string) (Connection, bool) {
	conn, ok := m.conns.Get(deviceID)
	if !ok {
		return Connection{}, false
	}
	return conn.snapshot(), true
}

// Connections returns a snapshot of all known connections sorted by device ID
// for consistent ordering.
func (m *Manager) Connections() []Connection {
	result := make([]Connection, 0, m.conns.Len())
	m.conns.Range(func(_ string, conn Connection) bool {
		result = append(result, conn.snapshot())
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].DeviceID < result[j].DeviceID
	})
	return result
}

// Reap removes Disconnected connections whose disconnect happened more than
// olderThan ago, bounding historical retention. Returns the number of
// connections removed. Connected connections are never reaped.
func (m *Manager) Reap(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var stale []string
	m.conns.Range(func(deviceID string, conn Connection) bool {
		if conn.State == StateDisconnected && conn.DisconnectedAt.Before(cutoff) {
			stale = append(stale, deviceID)
		}
		return true
	})
	for _, deviceID := range stale {
		m.conns.Del(deviceID)
		m.logger.WithField("device_id", deviceID).Debug("Reaped stale disconnected connection")
	}
	return len(stale)
}

// ----------------------------
// Event feed and metrics
// ----------------------------

// Events returns the lifecycle event feed. The feed is bounded with
// overwrite-oldest semantics: a slow consumer loses old events, never blocks
// a simulation trigger.
func (m *Manager) Events() <-chan journal.Event {
	return m.events.C()
}

// FeedMetrics returns throughput counters for the event feed.
func (m *Manager) FeedMetrics() journal.FeedMetrics {
	return m.events.Metrics()
}

// GetMetrics returns a snapshot of dispatch counters.
func (m *Manager) GetMetrics() Metrics {
	return Metrics{
		HooksDispatched: atomic.LoadInt64(&m.hooksDispatched),
		HookFailures:    atomic.LoadInt64(&m.hookFailures),
		EventsPublished: atomic.LoadInt64(&m.eventsPublished),
	}
}

func (m *Manager) publish(t journal.EventType, conn Connection) {
	ev := journal.Event{
		Type:         t,
		DeviceID:     conn.DeviceID,
		ConnectionID: conn.ID,
		Seq:          atomic.AddUint64(&m.seq, 1),
		TsUs:         time.Now().UnixMicro(),
	}
	m.events.ForceSend(ev)
	atomic.AddInt64(&m.eventsPublished, 1)
}

// dispatch invokes one observer hook, containing errors and panics at the
// manager boundary so one misbehaving application cannot prevent the
// remaining applications from being notified.
func (m *Manager) dispatch(app, hook string, conn Connection, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.recordHookFailure(&HookError{
				App:      app,
				Hook:     hook,
				DeviceID: conn.DeviceID,
				Err:      fmt.Errorf("panic: %v", r),
			})
		}
	}()

	atomic.AddInt64(&m.hooksDispatched, 1)
	if err := fn(); err != nil {
		m.recordHookFailure(&HookError{App: app, Hook: hook, DeviceID: conn.DeviceID, Err: err})
	}
}

func (m *Manager) recordHookFailure(herr *HookError) {
	atomic.AddInt64(&m.hookFailures, 1)
	m.logger.WithFields(logrus.Fields{
		"app":       herr.App,
		"hook":      herr.Hook,
		"device_id": herr.DeviceID,
		"error":     herr.Err,
	}).Error("Companion hook dispatch failed")
}

func appName(app any) string {
	if named, ok := app.(Named); ok {
		if name := named.Name(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", app)
}
