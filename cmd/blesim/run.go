package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blesim/internal/companion"
	"github.com/srg/blesim/internal/journal"
	"github.com/srg/blesim/internal/scenario"
	"github.com/srg/blesim/pkg/config"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Execute a YAML scenario against a simulated companion",
	Long: `Executes a scenario file step by step against a fresh simulator.

Examples:
  # Run a scenario and print the event transcript
  blesim run session.yaml

  # Run with structured logs enabled
  blesim run session.yaml --log-level debug

  # Emit journaled events as JSON lines instead of a transcript
  blesim run session.yaml --json

Scenario steps: advertise, revoke, revoke_all, connect, disconnect, wait.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

var (
	runJSON    bool
	runNoColor bool
	runVerbose bool
)

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output journaled events as JSON lines")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "Disable colored output")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Enable debug logging")
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenarioPath := args[0]

	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	manager := companion.NewManager(&companion.Options{
		RequireAdvertisement: cfg.RequireAdvertisement,
		EventBuffer:          cfg.EventBuffer,
	}, logger)

	j, err := journal.New(manager.Events(), cfg.JournalCapacity, func(jerr error) {
		logger.WithError(jerr).Error("journal error")
	})
	if err != nil {
		return err
	}
	if err := j.Start(); err != nil {
		return err
	}

	report, runErr := scenario.NewRunner(manager, logger).Run(cmd.Context(), sc)

	// The journal consumes the feed asynchronously; give it a moment to
	// retain everything the manager published before draining.
	waitForJournal(j, manager, time.Second)
	if err := j.Stop(); err != nil {
		logger.WithError(err).Warn("Failed to stop journal cleanly")
	}

	if runErr != nil {
		return runErr
	}

	printReport(report)

	if runJSON {
		return printEventsJSON(j)
	}
	return printTranscript(j)
}

// loadConfig reads the --config flag, falling back to defaults when unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// waitForJournal polls until the journal has retained every published event
// or the timeout expires.
func waitForJournal(j *journal.Journal, manager *companion.Manager, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if j.GetMetrics().EventsRetained >= manager.GetMetrics().EventsPublished {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func printReport(report *scenario.Report) {
	bold := color.New(color.Bold)
	if runNoColor {
		color.NoColor = true
	}

	bold.Fprintf(os.Stderr, "Scenario %q: %d steps in %v\n",
		report.Scenario, report.StepsRun, report.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  connects: %d  disconnects: %d  no-ops: %d\n",
		report.Connects, report.Disconnects, report.NoOps)
}

func printTranscript(j *journal.Journal) error {
	transcript, err := j.Transcript()
	if err != nil {
		return err
	}
	if transcript == "" {
		fmt.Fprintln(os.Stderr, "  (no lifecycle events)")
		return nil
	}
	fmt.Print(transcript)
	return nil
}

func printEventsJSON(j *journal.Journal) error {
	events, err := j.Drain()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
