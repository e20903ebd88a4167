package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blesim/internal/companion"
	"github.com/srg/blesim/pkg/app"
)

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the built-in media player and clock demo",
	Long: `Registers the bundled MediaPlayer and VirtualClock applications,
connects the default companion device, and prints the resulting state.

Examples:
  # Run with the default device id
  blesim demo

  # Connect a custom companion
  blesim demo --device phone-42`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

var (
	demoDeviceID string
	demoVerbose  bool
)

func init() {
	demoCmd.Flags().StringVar(&demoDeviceID, "device", "", "Companion device id (default from config)")
	demoCmd.Flags().BoolVar(&demoVerbose, "verbose", false, "Enable debug logging")
}

func runDemo(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	deviceID := demoDeviceID
	if deviceID == "" {
		deviceID = cfg.DefaultDeviceID
	}

	cmd.SilenceUsage = true

	manager := companion.NewManager(&companion.Options{
		RequireAdvertisement: cfg.RequireAdvertisement,
		EventBuffer:          cfg.EventBuffer,
	}, logger)

	player, err := app.NewMediaPlayer(manager, logger)
	if err != nil {
		return err
	}
	clock, err := app.NewVirtualClock(manager, logger)
	if err != nil {
		return err
	}

	conn, _, err := manager.SimulateConnect(deviceID)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Fprintf(os.Stdout, "Connected %s (connection %s)\n", conn.DeviceID, conn.ID)

	fmt.Println("Advertised services:")
	for _, svc := range manager.Services() {
		fmt.Printf("  %s %v\n", svc.Name, svc.Metadata)
	}

	fmt.Println("Applications:")
	fmt.Printf("  %s: companion=%q sessions=%d\n", player.Name(), player.Companion(), player.Sessions())
	fmt.Printf("  %s: last sync %s\n", clock.Name(), clock.LastSync().Format("15:04:05.000"))

	if _, _, err := manager.SimulateDisconnect(deviceID); err != nil {
		return err
	}
	bold.Fprintf(os.Stdout, "Disconnected %s\n", deviceID)

	metrics := manager.GetMetrics()
	fmt.Printf("Hooks dispatched: %d (failures: %d)\n", metrics.HooksDispatched, metrics.HookFailures)
	return nil
}
