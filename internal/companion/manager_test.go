package companion_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesim/internal/companion"
	"github.com/srg/blesim/internal/journal"
	"github.com/srg/blesim/internal/registry"
	"github.com/stretchr/testify/suite"
)

// recorderApp implements both observer hooks and records every invocation in
// a shared call log, so tests can assert cross-application dispatch order.
type recorderApp struct {
	name          string
	log           *[]string
	connectErr    error
	disconnectErr error
	panicConnect  bool
}

func (a *recorderApp) Name() string { return a.name }

func (a *recorderApp) OnCompanionConnect(conn companion.Connection) error {
	*a.log = append(*a.log, fmt.Sprintf("%s:connect:%s", a.name, conn.DeviceID))
	if a.panicConnect {
		panic("recorder app exploded")
	}
	return a.connectErr
}

func (a *recorderApp) OnCompanionDisconnect(conn companion.Connection) error {
	*a.log = append(*a.log, fmt.Sprintf("%s:disconnect:%s", a.name, conn.DeviceID))
	return a.disconnectErr
}

// connectOnlyApp exposes only the connect capability.
type connectOnlyApp struct {
	log *[]string
}

func (a *connectOnlyApp) OnCompanionConnect(conn companion.Connection) error {
	*a.log = append(*a.log, "connect-only:connect:"+conn.DeviceID)
	return nil
}

// hookless has no observer capabilities at all.
type hookless struct{}

type ManagerTestSuite struct {
	suite.Suite

	manager *companion.Manager
	calls   []string
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (suite *ManagerTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	suite.manager = companion.NewManager(nil, logger)
	suite.calls = nil
}

func (suite *ManagerTestSuite) newApp(name string) *recorderApp {
	return &recorderApp{name: name, log: &suite.calls}
}

func (suite *ManagerTestSuite) TestRegisterApplication() {
	// GOAL: Verify capability-checked, idempotent application registration
	//
	// TEST SCENARIO: Register apps with different hook capabilities -> only hook-bearing apps kept, duplicates collapsed

	suite.Run("application with both hooks is registered", func() {
		app := suite.newApp("media-player")
		suite.Assert().True(suite.manager.RegisterApplication(app), "MUST register app with hooks")
		suite.Assert().Equal([]string{"media-player"}, suite.manager.Applications())
	})

	suite.Run("duplicate registration is idempotent", func() {
		app := suite.newApp("clock")
		suite.Assert().True(suite.manager.RegisterApplication(app))
		suite.Assert().True(suite.manager.RegisterApplication(app), "duplicate registration MUST succeed")

		_, _, err := suite.manager.SimulateConnect("phone-1")
		suite.Require().NoError(err)
		count := 0
		for _, call := range suite.calls {
			if call == "clock:connect:phone-1" {
				count++
			}
		}
		suite.Assert().Equal(1, count, "duplicate registration MUST NOT double-fire hooks")
	})

	suite.Run("application without hooks is skipped", func() {
		suite.Assert().False(suite.manager.RegisterApplication(&hookless{}), "hookless app MUST NOT be registered")
		suite.Assert().False(suite.manager.RegisterApplication(nil), "nil app MUST NOT be registered")
	})

	suite.Run("connect-only application is registered", func() {
		suite.Assert().True(suite.manager.RegisterApplication(&connectOnlyApp{log: &suite.calls}), "single-hook app MUST be registered")
	})
}

func (suite *ManagerTestSuite) TestSimulateConnectIdempotence() {
	// GOAL: Verify connecting an already-connected device never double-fires the hook
	//
	// TEST SCENARIO: SimulateConnect twice for the same device -> one dispatch, same connection returned

	app := suite.newApp("media-player")
	suite.manager.RegisterApplication(app)

	first, transitioned, err := suite.manager.SimulateConnect("phone-42")
	suite.Require().NoError(err)
	suite.Assert().True(transitioned, "first connect MUST transition")
	suite.Assert().Equal(companion.StateConnected, first.State)

	second, transitioned, err := suite.manager.SimulateConnect("phone-42")
	suite.Require().NoError(err)
	suite.Assert().False(transitioned, "second connect MUST be a no-op")
	suite.Assert().Equal(first.ID, second.ID, "MUST return the existing connection")

	suite.Assert().Equal([]string{"media-player:connect:phone-42"}, suite.calls, "hook MUST fire exactly once")
}

func (suite *ManagerTestSuite) TestSimulateDisconnectIdempotence() {
	// GOAL: Verify no spurious disconnect dispatch
	//
	// TEST SCENARIO: Disconnect a never-connected device, and a device twice -> hooks fire at most once, never spuriously

	app := suite.newApp("media-player")
	suite.manager.RegisterApplication(app)

	suite.Run("disconnect of never-connected device is a no-op", func() {
		_, transitioned, err := suite.manager.SimulateDisconnect("ghost")
		suite.Assert().NoError(err, "MUST NOT be an error")
		suite.Assert().False(transitioned)
		suite.Assert().Empty(suite.calls, "MUST NOT dispatch any hook")
	})

	suite.Run("second disconnect is a no-op", func() {
		_, _, err := suite.manager.SimulateConnect("phone-42")
		suite.Require().NoError(err)
		_, transitioned, err := suite.manager.SimulateDisconnect("phone-42")
		suite.Require().NoError(err)
		suite.Assert().True(transitioned)

		_, transitioned, err = suite.manager.SimulateDisconnect("phone-42")
		suite.Assert().NoError(err)
		suite.Assert().False(transitioned, "repeated disconnect MUST be a no-op")

		suite.Assert().Equal([]string{
			"media-player:connect:phone-42",
			"media-player:disconnect:phone-42",
		}, suite.calls, "disconnect hook MUST fire exactly once")
	})
}

func (suite *ManagerTestSuite) TestDispatchOrder() {
	// GOAL: Verify hooks fire in registration order
	//
	// TEST SCENARIO: Register A, B, C -> single connect invokes A then B then C

	suite.manager.RegisterApplication(suite.newApp("A"))
	suite.manager.RegisterApplication(suite.newApp("B"))
	suite.manager.RegisterApplication(suite.newApp("C"))

	_, _, err := suite.manager.SimulateConnect("x")
	suite.Require().NoError(err)

	suite.Assert().Equal([]string{
		"A:connect:x",
		"B:connect:x",
		"C:connect:x",
	}, suite.calls, "dispatch MUST follow registration order")
}

func (suite *ManagerTestSuite) TestDispatchIsolation() {
	// GOAL: Verify one application's failure cannot starve the others
	//
	// TEST SCENARIO: B's hook errors, then panics -> A and C still notified, failures counted

	a := suite.newApp("A")
	b := suite.newApp("B")
	c := suite.newApp("C")
	suite.manager.RegisterApplication(a)
	suite.manager.RegisterApplication(b)
	suite.manager.RegisterApplication(c)

	suite.Run("hook error is contained", func() {
		b.connectErr = errors.New("media session not ready")

		_, _, err := suite.manager.SimulateConnect("phone-1")
		suite.Assert().NoError(err, "hook failure MUST NOT surface to the simulation trigger")
		suite.Assert().Equal([]string{
			"A:connect:phone-1",
			"B:connect:phone-1",
			"C:connect:phone-1",
		}, suite.calls, "all applications MUST be notified")
		suite.Assert().Equal(int64(1), suite.manager.GetMetrics().HookFailures, "failure MUST be counted")
	})

	suite.Run("hook panic is contained", func() {
		suite.calls = nil
		b.connectErr = nil
		b.panicConnect = true

		suite.Assert().NotPanics(func() {
			_, _, err := suite.manager.SimulateConnect("phone-2")
			suite.Assert().NoError(err)
		}, "panicking hook MUST NOT unwind the dispatch loop")
		suite.Assert().Contains(suite.calls, "A:connect:phone-2")
		suite.Assert().Contains(suite.calls, "C:connect:phone-2", "apps after the panicking one MUST still run")
	})
}

func (suite *ManagerTestSuite) TestValidation() {
	// GOAL: Verify empty identifiers are rejected synchronously as InvalidArgument
	//
	// TEST SCENARIO: Empty device ids and service names -> ValidationError, no state change

	_, _, err := suite.manager.SimulateConnect("")
	suite.Assert().ErrorIs(err, companion.ErrInvalidArgument, "empty device id MUST be InvalidArgument")

	_, _, err = suite.manager.SimulateConnect("   ")
	suite.Assert().ErrorIs(err, companion.ErrInvalidArgument, "blank device id MUST be InvalidArgument")

	_, _, err = suite.manager.SimulateDisconnect("")
	suite.Assert().ErrorIs(err, companion.ErrInvalidArgument)

	err = suite.manager.AdvertiseService("", nil)
	suite.Assert().ErrorIs(err, companion.ErrInvalidArgument, "empty service name MUST be InvalidArgument")

	var verr *registry.ValidationError
	suite.Assert().ErrorAs(err, &verr)
	suite.Assert().Equal("service name", verr.Field)

	suite.Assert().Empty(suite.manager.Connections(), "failed validation MUST NOT create connections")
}

func (suite *ManagerTestSuite) TestRequireAdvertisement() {
	// GOAL: Verify the opt-in advertisement gate on connects
	//
	// TEST SCENARIO: RequireAdvertisement set -> connect fails until a service is advertised

	manager := companion.NewManager(&companion.Options{RequireAdvertisement: true}, nil)

	_, _, err := manager.SimulateConnect("phone-42")
	suite.Assert().ErrorIs(err, companion.ErrNoAdvertisedServices, "connect without advertisement MUST fail when gated")

	suite.Require().NoError(manager.AdvertiseService("media-control", nil))
	_, transitioned, err := manager.SimulateConnect("phone-42")
	suite.Assert().NoError(err)
	suite.Assert().True(transitioned, "connect MUST succeed once a service is advertised")
}

func (suite *ManagerTestSuite) TestConnectionLifecycleIntrospection() {
	// GOAL: Verify connection retention, reconnect identity, and reaping
	//
	// TEST SCENARIO: connect -> disconnect -> lookup retained -> reconnect gets new ID -> reap removes stale entries

	first, _, err := suite.manager.SimulateConnect("phone-42")
	suite.Require().NoError(err)

	active, ok := suite.manager.ActiveConnection("phone-42")
	suite.Assert().True(ok, "MUST report the live connection")
	suite.Assert().Equal(first.ID, active.ID)

	_, _, err = suite.manager.SimulateDisconnect("phone-42")
	suite.Require().NoError(err)

	_, ok = suite.manager.ActiveConnection("phone-42")
	suite.Assert().False(ok, "disconnected device MUST NOT be active")

	retained, ok := suite.manager.Lookup("phone-42")
	suite.Assert().True(ok, "disconnected connection MUST be retained for lookup")
	suite.Assert().Equal(companion.StateDisconnected, retained.State)
	suite.Assert().False(retained.DisconnectedAt.IsZero(), "disconnect time MUST be recorded")

	second, transitioned, err := suite.manager.SimulateConnect("phone-42")
	suite.Require().NoError(err)
	suite.Assert().True(transitioned, "reconnect MUST re-enter Connected")
	suite.Assert().NotEqual(first.ID, second.ID, "reconnect MUST mint a fresh connection")

	_, _, err = suite.manager.SimulateDisconnect("phone-42")
	suite.Require().NoError(err)

	suite.Assert().Equal(0, suite.manager.Reap(time.Hour), "recent disconnects MUST survive the reap window")
	suite.Assert().Equal(1, suite.manager.Reap(0), "stale disconnected connection MUST be reaped")
	_, ok = suite.manager.Lookup("phone-42")
	suite.Assert().False(ok)
}

func (suite *ManagerTestSuite) TestConnectMetadata() {
	// GOAL: Verify connect metadata reaches observers as an isolated copy
	//
	// TEST SCENARIO: connect with metadata -> observer snapshot carries it, registry state unaffected by mutation

	var seen companion.Connection
	app := &captureApp{sink: &seen}
	suite.manager.RegisterApplication(app)

	md := map[string]string{"model": "pixel-9"}
	conn, _, err := suite.manager.SimulateConnectWithMetadata("phone-42", md)
	suite.Require().NoError(err)
	suite.Assert().Equal("pixel-9", conn.Metadata["model"])
	suite.Assert().Equal("pixel-9", seen.Metadata["model"], "observer MUST see the metadata")

	md["model"] = "tampered"
	seen.Metadata["model"] = "tampered"
	again, _ := suite.manager.Lookup("phone-42")
	suite.Assert().Equal("pixel-9", again.Metadata["model"], "manager state MUST be isolated from caller and observer maps")
}

func (suite *ManagerTestSuite) TestEventFeed() {
	// GOAL: Verify lifecycle events are published with increasing sequence numbers
	//
	// TEST SCENARIO: connect + disconnect + idempotent repeats -> exactly two events on the feed

	_, _, err := suite.manager.SimulateConnect("phone-42")
	suite.Require().NoError(err)
	suite.manager.SimulateConnect("phone-42") // idempotent, no event
	suite.manager.SimulateDisconnect("phone-42")
	suite.manager.SimulateDisconnect("phone-42") // no-op, no event

	var events []journal.Event
	for {
		select {
		case ev := <-suite.manager.Events():
			events = append(events, ev)
			continue
		default:
		}
		break
	}

	suite.Require().Len(events, 2, "idempotent operations MUST NOT publish events")
	suite.Assert().Equal(journal.EventConnected, events[0].Type)
	suite.Assert().Equal(journal.EventDisconnected, events[1].Type)
	suite.Assert().Equal(events[0].Seq+1, events[1].Seq, "sequence MUST be strictly increasing")
	suite.Assert().Equal(events[0].ConnectionID, events[1].ConnectionID, "both events MUST reference the same connection")
	suite.Assert().Equal(int64(2), suite.manager.GetMetrics().EventsPublished)
}

func (suite *ManagerTestSuite) TestConcreteScenario() {
	// GOAL: Verify the end-to-end media-control flow
	//
	// TEST SCENARIO: advertise media-control -> connect phone-42 -> disconnect twice -> descriptor and hooks match expectations

	app := suite.newApp("MediaPlayer")
	suite.manager.RegisterApplication(app)

	suite.Require().NoError(suite.manager.AdvertiseService("media-control", map[string]string{"version": "1"}))

	services := suite.manager.Services()
	suite.Require().Len(services, 1)
	suite.Assert().Equal("media-control", services[0].Name)
	suite.Assert().Equal(map[string]string{"version": "1"}, services[0].Metadata)

	_, _, err := suite.manager.SimulateConnect("phone-42")
	suite.Require().NoError(err)
	_, _, err = suite.manager.SimulateDisconnect("phone-42")
	suite.Require().NoError(err)
	_, transitioned, err := suite.manager.SimulateDisconnect("phone-42")
	suite.Require().NoError(err)
	suite.Assert().False(transitioned, "subsequent disconnect MUST dispatch nothing")

	suite.Assert().Equal([]string{
		"MediaPlayer:connect:phone-42",
		"MediaPlayer:disconnect:phone-42",
	}, suite.calls)
}

// captureApp stores the most recent connect snapshot for inspection.
type captureApp struct {
	sink *companion.Connection
}

func (a *captureApp) OnCompanionConnect(conn companion.Connection) error {
	*a.sink = conn
	return nil
}
