// Package app provides the base type blesim applications embed, plus two
// reference applications used by the CLI demo and by test harnesses.
//
// An application is constructed with a Manager (injected, never located
// globally) and registers itself for companion lifecycle notifications; which
// hooks it receives is decided by the capabilities of the concrete type.
package app

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blesim/internal/companion"
)

// App is the embeddable base carrying identity, logging, and the manager
// handle. It implements no companion hooks itself; the concrete application
// type decides its capabilities.
type App struct {
	name      string
	log       *logrus.Entry
	bluetooth *companion.Manager
}

// NewApp builds the base state for a concrete application. A nil logger gets
// a quiet default.
func NewApp(name string, bluetooth *companion.Manager, logger *logrus.Logger) App {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return App{
		name:      name,
		log:       logger.WithField("app", name),
		bluetooth: bluetooth,
	}
}

// Name returns the application identity used in dispatch logging.
func (a *App) Name() string {
	return a.name
}

// Log returns the application-scoped log entry.
func (a *App) Log() *logrus.Entry {
	return a.log
}

// Bluetooth returns the injected connectivity manager.
func (a *App) Bluetooth() *companion.Manager {
	return a.bluetooth
}
