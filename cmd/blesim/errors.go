package main

import (
	"errors"
	"fmt"

	"github.com/srg/blesim/internal/companion"
	"github.com/srg/blesim/internal/registry"
)

// FormatUserError rewrites well-known errors into actionable messages;
// anything unrecognized passes through unchanged.
func FormatUserError(err error) string {
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("%s - check the scenario file for empty or malformed fields", verr)
	}
	if errors.Is(err, companion.ErrNoAdvertisedServices) {
		return fmt.Sprintf("%s - add an 'advertise' step before connecting, or disable require_advertisement in the config", err)
	}
	return err.Error()
}
