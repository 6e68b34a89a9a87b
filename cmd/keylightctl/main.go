// Keylightctl is a control utility for Elgato Key Light devices.
//
// It provides mDNS device discovery, direct state control (power,
// brightness, color temperature), device nicknames, and a daemon mode
// that keeps live sessions to every light on the network and exposes
// them over a local HTTP API.
//
// Usage:
//
//	keylightctl [command] [flags]
//
// See 'keylightctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlumen/keylightctl/internal/logging"
	"github.com/openlumen/keylightctl/internal/version"
)

func main() {
	// Silent unless KEYLIGHT_LOG_LEVEL is set; CLI output goes to stdout.
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "keylightctl",
	Short: "Elgato Key Light control utility",
	Long: `A utility for discovering and controlling Elgato Key Light devices.

Provides mDNS discovery, direct state control, device nicknames, and a
daemon mode that manages live sessions to every light on the network.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("keylightctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
