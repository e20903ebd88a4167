package companion

import (
	"errors"
	"fmt"

	"github.com/srg/blesim/internal/registry"
)

// ErrInvalidArgument matches any validation failure raised by the manager or
// its service registry, regardless of which input was rejected.
var ErrInvalidArgument = registry.ErrInvalidArgument

// ErrNoAdvertisedServices is returned by SimulateConnect when
// Options.RequireAdvertisement is set and nothing is advertised - a real
// companion would never discover a silent host.
var ErrNoAdvertisedServices = errors.New("no services advertised")

// HookError records one failed observer dispatch. It is contained at the
// manager boundary: logged and counted, never returned to the code that
// triggered the simulation.
type HookError struct {
	App      string // application identity, "*pkg.Type" when unnamed
	Hook     string // "connect" or "disconnect"
	DeviceID string
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("application %q %s hook failed for device %q: %v", e.App, e.Hook, e.DeviceID, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
