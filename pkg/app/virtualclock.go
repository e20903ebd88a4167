package app

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesim/internal/companion"
)

// VirtualClock is a minimal reference application: it exposes the current
// time and advertises a time-sync service so a connected companion could, in
// principle, pull the host clock. Its business logic is deliberately tiny;
// the point is demonstrating the companion lifecycle hooks.
type VirtualClock struct {
	App

	mu       sync.Mutex
	lastSync time.Time // when a companion last connected
}

// NewVirtualClock builds the clock, advertises time-sync, and registers for
// lifecycle notifications.
func NewVirtualClock(bluetooth *companion.Manager, logger *logrus.Logger) (*VirtualClock, error) {
	c := &VirtualClock{App: NewApp("VirtualClock", bluetooth, logger)}

	if err := bluetooth.AdvertiseService("time-sync", map[string]string{"format": "rfc3339"}); err != nil {
		return nil, err
	}
	bluetooth.RegisterApplication(c)
	return c, nil
}

// Now returns the current UTC time.
func (c *VirtualClock) Now() time.Time {
	return time.Now().UTC()
}

// OnCompanionConnect records the sync point for the new companion.
func (c *VirtualClock) OnCompanionConnect(conn companion.Connection) error {
	c.mu.Lock()
	c.lastSync = c.Now()
	c.mu.Unlock()

	c.Log().WithField("device_id", conn.DeviceID).Info("Companion connected")
	return nil
}

// OnCompanionDisconnect only logs; the clock keeps ticking without a peer.
func (c *VirtualClock) OnCompanionDisconnect(conn companion.Connection) error {
	c.Log().WithField("device_id", conn.DeviceID).Info("Companion disconnected")
	return nil
}

// LastSync returns when a companion last connected, zero if never.
func (c *VirtualClock) LastSync() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync
}
