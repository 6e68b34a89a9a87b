// Package config provides user configuration management for keylightctl.
//
// This package manages a YAML-based configuration file that stores
// user-defined metadata for Key Light devices (nicknames, last known
// addresses) and application preferences such as discovery and
// throttling settings. The configuration follows OS-specific
// conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/keylightctl/config.yaml or $HOME/.config/keylightctl/config.yaml
//   - macOS: $HOME/.config/keylightctl/config.yaml
//   - Windows: %LOCALAPPDATA%\keylightctl\config.yaml
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Nickname a device by its stable identity
//	registry.SetDeviceNickname("Elgato Key Light 12AB", "Desk Left")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across
// goroutines. File operations are protected by a mutex to ensure
// atomic writes.
package config
