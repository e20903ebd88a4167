package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesim/internal/companion"
)

// Report summarizes one scenario execution.
type Report struct {
	Scenario    string
	StepsRun    int
	Connects    int // connects that actually transitioned
	Disconnects int // disconnects that actually transitioned
	NoOps       int // idempotent connects/disconnects that changed nothing
	Elapsed     time.Duration
}

// Runner executes scenarios against one manager.
type Runner struct {
	manager *companion.Manager
	logger  *logrus.Logger
}

// NewRunner creates a runner. A nil logger gets a quiet default.
func NewRunner(manager *companion.Manager, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Runner{manager: manager, logger: logger}
}

// Run executes the scenario's steps in order. Execution stops at the first
// failing step or when ctx is cancelled; idempotent no-op transitions are not
// failures, they are counted in the report.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	report := &Report{Scenario: sc.Name}
	start := time.Now()
	defer func() {
		report.Elapsed = time.Since(start)
	}()

	r.logger.WithFields(logrus.Fields{
		"scenario": sc.Name,
		"steps":    len(sc.Steps),
	}).Info("Running scenario")

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := r.runStep(ctx, step, report); err != nil {
			return report, fmt.Errorf("scenario %q step %d (%s): %w", sc.Name, i+1, step.Action, err)
		}
		report.StepsRun++
	}

	return report, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, report *Report) error {
	switch step.Action {
	case ActionAdvertise:
		return r.manager.AdvertiseService(step.Service, step.Metadata)

	case ActionRevoke:
		if !r.manager.RevokeService(step.Service) {
			r.logger.WithField("service", step.Service).Debug("Revoke of unadvertised service, no-op")
		}
		return nil

	case ActionRevokeAll:
		r.manager.StopAdvertising()
		return nil

	case ActionConnect:
		_, transitioned, err := r.manager.SimulateConnectWithMetadata(step.DeviceID, step.Metadata)
		if err != nil {
			return err
		}
		if transitioned {
			report.Connects++
		} else {
			report.NoOps++
		}
		return nil

	case ActionDisconnect:
		_, transitioned, err := r.manager.SimulateDisconnect(step.DeviceID)
		if err != nil {
			return err
		}
		if transitioned {
			report.Disconnects++
		} else {
			report.NoOps++
		}
		return nil

	case ActionWait:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.Duration):
			return nil
		}

	default:
		// Validate() runs before execution, so this is unreachable for
		// loaded scenarios.
		return fmt.Errorf("unknown action %q", step.Action)
	}
}
