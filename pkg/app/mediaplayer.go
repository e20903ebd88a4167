package app

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesim/internal/companion"
)

// MediaControlService is the service name a MediaPlayer advertises so a
// companion can discover its remote-control surface.
const MediaControlService = "media-control"

// MediaPlayer is a reference application that advertises media-control and
// tracks which companion currently drives playback.
type MediaPlayer struct {
	App

	mu        sync.Mutex
	companion string // device ID of the connected companion, "" when none
	sessions  int    // completed connect/disconnect cycles
}

// NewMediaPlayer builds the player, advertises its service, and registers for
// lifecycle notifications.
func NewMediaPlayer(bluetooth *companion.Manager, logger *logrus.Logger) (*MediaPlayer, error) {
	p := &MediaPlayer{App: NewApp("MediaPlayer", bluetooth, logger)}

	if err := bluetooth.AdvertiseService(MediaControlService, map[string]string{"version": "1"}); err != nil {
		return nil, err
	}
	bluetooth.RegisterApplication(p)
	return p, nil
}

// OnCompanionConnect adopts the connecting companion as the playback remote.
func (p *MediaPlayer) OnCompanionConnect(conn companion.Connection) error {
	p.mu.Lock()
	p.companion = conn.DeviceID
	p.mu.Unlock()

	p.Log().WithField("device_id", conn.DeviceID).Info("Companion connected, remote control active")
	return nil
}

// OnCompanionDisconnect releases the remote when its companion goes away.
func (p *MediaPlayer) OnCompanionDisconnect(conn companion.Connection) error {
	p.mu.Lock()
	if p.companion == conn.DeviceID {
		p.companion = ""
		p.sessions++
	}
	p.mu.Unlock()

	p.Log().WithField("device_id", conn.DeviceID).Info("Companion disconnected, remote control released")
	return nil
}

// Companion returns the device ID of the active remote, or "" when none.
func (p *MediaPlayer) Companion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.companion
}

// Sessions returns the number of completed remote-control sessions.
func (p *MediaPlayer) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}
