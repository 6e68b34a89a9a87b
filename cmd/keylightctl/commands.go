package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlumen/keylightctl/internal/config"
	"github.com/openlumen/keylightctl/internal/control"
	"github.com/openlumen/keylightctl/internal/discovery"
	"github.com/openlumen/keylightctl/internal/elgato"
	"github.com/openlumen/keylightctl/internal/instance"
	"github.com/openlumen/keylightctl/internal/server"
)

// Command flags
var (
	deviceName   string
	deviceHost   string
	devicePort   int
	scanTimeout  int
	outputFormat string

	setOn          bool
	setOff         bool
	setBrightness  int
	setTemperature int

	renamePush bool

	serveListenAddr string
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceName, "device", "", "Device identity or nickname (defaults to the only device found)")
	rootCmd.PersistentFlags().StringVar(&deviceHost, "host", "", "Device IP address (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", elgato.DefaultPort, "Device HTTP port")
	rootCmd.PersistentFlags().IntVar(&scanTimeout, "timeout", config.DefaultScanTimeout, "Discovery timeout in seconds")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

// scanCmd discovers lights on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Key Lights on the network",
	Long: `Scan for Key Lights using mDNS/DNS-SD discovery.

This command listens for mDNS announcements and displays all discovered
lights with their addresses and any configured nicknames.`,
	Example: `  # Scan with the default timeout
  keylightctl scan

  # Quick 3-second scan
  keylightctl scan --timeout 3`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	timeout := effectiveScanTimeout(cmd, registry)

	fmt.Printf("Scanning for Key Lights (timeout: %ds)...\n\n", timeout)

	records, err := discovery.Collect(cmd.Context(), time.Duration(timeout)*time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No lights found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the light is powered and on the same network")
		fmt.Println("  - Check that your network allows multicast (mDNS)")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --host to specify the IP manually if discovery fails")
		return nil
	}

	fmt.Printf("Found %d light(s):\n\n", len(records))
	for i, record := range records {
		fmt.Printf("%d. %s\n", i+1, registry.DisplayName(record.Identity))
		if registry.DisplayName(record.Identity) != record.Identity {
			fmt.Printf("   Identity: %s\n", record.Identity)
		}
		fmt.Printf("   Address:  %s\n", record.Addr())
		fmt.Println()

		registry.UpdateDeviceLastSeen(record.Identity, record.Addr())
	}

	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println("Use 'keylightctl status --device <name>' to view a light's state")
	return nil
}

// statusCmd displays a light's current state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a light's current state",
	Long: `Display the current state of a Key Light.

This command connects to the light and reads its power, brightness,
color temperature, and accessory information.`,
	Example: `  # Status with auto-discovery (single light networks)
  keylightctl status

  # Status for a specific light
  keylightctl status --device "Desk Left"

  # JSON output for scripting
  keylightctl status --device "Desk Left" --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	record, err := resolveDevice(cmd)
	if err != nil {
		return err
	}

	client := elgato.NewClient(record.Host, record.Port)

	state, err := client.FetchState(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	info, err := client.AccessoryInfo(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read accessory info: %w", err)
	}

	if outputFormat == "json" {
		out := map[string]interface{}{
			"identity":     record.Identity,
			"addr":         record.Addr(),
			"display_name": info.DisplayName,
			"serial":       info.SerialNumber,
			"firmware":     info.FirmwareVersion,
			"on":           state.On,
			"brightness":   state.Brightness,
			"temperature":  state.Temperature,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	power := "off"
	if state.On {
		power = "on"
	}
	fmt.Printf("%s (%s)\n", record.Identity, record.Addr())
	fmt.Printf("  Power:       %s\n", power)
	fmt.Printf("  Brightness:  %d%%\n", state.Brightness)
	fmt.Printf("  Temperature: %dK\n", state.Temperature)
	if info.DisplayName != "" {
		fmt.Printf("  Name:        %s\n", info.DisplayName)
	}
	if info.SerialNumber != "" {
		fmt.Printf("  Serial:      %s\n", info.SerialNumber)
	}
	if info.FirmwareVersion != "" {
		fmt.Printf("  Firmware:    %s\n", info.FirmwareVersion)
	}
	return nil
}

// setCmd changes a light's state
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a light's state",
	Long: `Change a Key Light's power, brightness, or color temperature.

Unspecified fields keep their current value. Brightness is a percentage
(1-100); temperature is in Kelvin (2900-7000). Out-of-range values are
rejected.`,
	Example: `  # Turn a light on at 40% brightness
  keylightctl set --device "Desk Left" --on --brightness 40

  # Warm it up without touching brightness
  keylightctl set --device "Desk Left" --temperature 3200

  # Turn it off
  keylightctl set --device "Desk Left" --off`,
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVar(&setOn, "on", false, "Turn the light on")
	setCmd.Flags().BoolVar(&setOff, "off", false, "Turn the light off")
	setCmd.Flags().IntVar(&setBrightness, "brightness", 0, "Brightness percentage (1-100)")
	setCmd.Flags().IntVar(&setTemperature, "temperature", 0, "Color temperature in Kelvin (2900-7000)")
}

func runSet(cmd *cobra.Command, args []string) error {
	if setOn && setOff {
		return fmt.Errorf("--on and --off are mutually exclusive")
	}
	if !setOn && !setOff && !cmd.Flags().Changed("brightness") && !cmd.Flags().Changed("temperature") {
		return fmt.Errorf("nothing to change: pass --on, --off, --brightness, or --temperature")
	}

	record, err := resolveDevice(cmd)
	if err != nil {
		return err
	}

	client := elgato.NewClient(record.Host, record.Port)

	// Read-modify-write so unspecified fields keep their value.
	state, err := client.FetchState(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read current state: %w", err)
	}

	if setOn {
		state.On = true
	}
	if setOff {
		state.On = false
	}
	if cmd.Flags().Changed("brightness") {
		state.Brightness = setBrightness
	}
	if cmd.Flags().Changed("temperature") {
		state.Temperature = setTemperature
	}

	if err := client.PutState(cmd.Context(), state); err != nil {
		return fmt.Errorf("failed to apply state: %w", err)
	}

	fmt.Printf("%s: %s\n", record.Identity, state.String())
	return nil
}

// renameCmd assigns a nickname to a light
var renameCmd = &cobra.Command{
	Use:   "rename <nickname>",
	Short: "Assign a nickname to a light",
	Long: `Assign a local nickname to a Key Light.

The nickname is stored in the local configuration file and can be used
with --device in other commands. With --push, the name is also written
to the device itself as its display name.`,
	Example: `  # Nickname the only light on the network
  keylightctl rename "Desk Left"

  # Rename a specific light and push the name to the device
  keylightctl rename "Desk Left" --device "Elgato Key Light 12AB" --push`,
	Args: cobra.ExactArgs(1),
	RunE: runRename,
}

func init() {
	renameCmd.Flags().BoolVar(&renamePush, "push", false, "Also set the name on the device itself")
}

func runRename(cmd *cobra.Command, args []string) error {
	nickname := args[0]
	if err := elgato.ValidateDisplayName(nickname); err != nil {
		return err
	}

	record, err := resolveDevice(cmd)
	if err != nil {
		return err
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry.SetDeviceNickname(record.Identity, nickname)
	registry.UpdateDeviceLastSeen(record.Identity, record.Addr())

	if renamePush {
		client := elgato.NewClient(record.Host, record.Port)
		if err := client.SetDisplayName(cmd.Context(), nickname); err != nil {
			return fmt.Errorf("failed to set device display name: %w", err)
		}
		if info, err := client.AccessoryInfo(cmd.Context()); err == nil && info.SerialNumber != "" {
			registry.SetDeviceSerial(record.Identity, info.SerialNumber)
		}
	}

	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s is now %q\n", record.Identity, nickname)
	return nil
}

// watchCmd streams discovery events
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch lights joining and leaving the network",
	Long: `Continuously watch for Key Lights joining, moving, and leaving the
network, printing one line per event. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	watcher := discovery.NewWatcher()
	if err := watcher.Start(cmd.Context()); err != nil {
		return err
	}
	defer watcher.Stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	fmt.Println("Watching for Key Lights (Ctrl-C to stop)...")

	for {
		select {
		case <-sigs:
			fmt.Println("\nStopped.")
			return nil
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			fmt.Printf("%s  %-8s %s\n", time.Now().Format("15:04:05"), ev.Type, ev.Record)
		}
	}
}

// serveCmd runs the daemon
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control daemon",
	Long: `Run the control daemon: discover lights continuously, keep a live
session to each one, and expose them over a local HTTP API.

Sessions throttle writes (one per flush interval, carrying the latest
requested state) and back off from lights that stop responding until
they answer again. Only one daemon may run per machine.`,
	Example: `  # Run with defaults (API on 127.0.0.1:9124)
  keylightctl serve

  # Custom listen address
  keylightctl serve --listen 127.0.0.1:9200`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "API listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	lock, err := instance.Acquire(0)
	if err != nil {
		return err
	}
	defer lock.Release()

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	prefs := registry.Preferences

	listenAddr := serveListenAddr
	if listenAddr == "" {
		listenAddr = prefs.ListenAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	watcher := discovery.NewWatcher()
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	sessions := control.NewRegistry(control.Options{
		FlushInterval:  prefs.FlushInterval(),
		RequestTimeout: prefs.RequestTimeout(),
	})

	registryDone := make(chan struct{})
	go func() {
		sessions.Run(ctx, watcher.Events())
		close(registryDone)
	}()

	// Persist device sightings so scan/status see fresh addresses even
	// when the daemon did the discovering. SIGHUP re-reads the config so
	// edits made while the daemon runs (nicknames, preferences) are not
	// clobbered by the next save.
	notifications, unsubscribe := sessions.Subscribe()
	defer unsubscribe()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	go func() {
		for {
			select {
			case <-hup:
				if _, err := config.ReloadRegistry(); err != nil {
					fmt.Fprintf(os.Stderr, "config reload failed: %v\n", err)
					continue
				}
				fmt.Println("Configuration reloaded.")
			case n, ok := <-notifications:
				if !ok {
					return
				}
				if n.Type != control.DeviceAvailable {
					continue
				}
				reg, err := config.LoadRegistry()
				if err != nil {
					continue
				}
				reg.UpdateDeviceLastSeen(n.Record.Identity, n.Record.Addr())
				if err := config.SaveGlobal(); err != nil {
					fmt.Fprintf(os.Stderr, "failed to persist device sighting: %v\n", err)
				}
			}
		}
	}()

	api := server.New(&server.Config{ListenAddr: listenAddr}, sessions)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- api.Start()
	}()

	fmt.Printf("keylightctl daemon running, API on %s (Ctrl-C to stop)\n", listenAddr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigs:
		fmt.Println("\nShutting down...")
	case err := <-serverErr:
		cancel()
		<-registryDone
		return err
	}

	// Teardown order: stop the API first so clients see a clean close,
	// then discovery and sessions.
	if err := api.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "API shutdown error: %v\n", err)
	}
	cancel()
	watcher.Stop()
	<-registryDone

	return nil
}

// effectiveScanTimeout resolves the discovery timeout: the --timeout
// flag when given, otherwise the configured preference.
func effectiveScanTimeout(cmd *cobra.Command, registry *config.Registry) int {
	if cmd.Flags().Changed("timeout") {
		return scanTimeout
	}
	if registry.Preferences != nil && registry.Preferences.ScanTimeout > 0 {
		return registry.Preferences.ScanTimeout
	}
	return scanTimeout
}

// resolveDevice finds the light a command should talk to: --host wins,
// then --device by identity or nickname, then the only light found.
func resolveDevice(cmd *cobra.Command) (discovery.Record, error) {
	if deviceHost != "" {
		return discovery.Record{
			Identity: fmt.Sprintf("%s:%d", deviceHost, devicePort),
			Name:     deviceHost,
			Host:     deviceHost,
			Port:     devicePort,
			LastSeen: time.Now(),
		}, nil
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return discovery.Record{}, fmt.Errorf("failed to load config: %w", err)
	}
	if registry.Preferences != nil && !registry.Preferences.AutoDiscover {
		return discovery.Record{}, fmt.Errorf("auto-discovery is disabled in config; use --host to specify an address")
	}

	timeout := effectiveScanTimeout(cmd, registry)
	fmt.Printf("Discovering lights (timeout: %ds)...\n", timeout)
	records, err := discovery.Collect(cmd.Context(), time.Duration(timeout)*time.Second)
	if err != nil {
		return discovery.Record{}, fmt.Errorf("discovery failed: %w", err)
	}
	if len(records) == 0 {
		return discovery.Record{}, fmt.Errorf("no lights found; use --host to specify an address manually")
	}

	if deviceName != "" {
		for _, record := range records {
			if record.Identity == deviceName || registry.DisplayName(record.Identity) == deviceName {
				return record, nil
			}
		}
		return discovery.Record{}, fmt.Errorf("no light named %q found", deviceName)
	}

	if len(records) > 1 {
		fmt.Printf("Found %d lights:\n", len(records))
		for i, record := range records {
			fmt.Printf("%d. %s (%s)\n", i+1, registry.DisplayName(record.Identity), record.Addr())
		}
		return discovery.Record{}, fmt.Errorf("multiple lights found; use --device to pick one")
	}

	return records[0], nil
}
