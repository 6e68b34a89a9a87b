package config

import "time"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by stable device identity
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single Key Light.
// This is keyed by the device's stable identity (the mDNS service
// instance name) in the Registry.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	Serial   string    `yaml:"serial,omitempty"`    // Serial number from accessory info, once read
	LastAddr string    `yaml:"last_addr,omitempty"` // Last known host:port control endpoint
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover     bool   `yaml:"auto_discover"`      // Enable automatic mDNS discovery on startup
	ScanTimeout      int    `yaml:"scan_timeout"`       // One-shot scan timeout in seconds
	FlushIntervalMs  int    `yaml:"flush_interval_ms"`  // Minimum spacing between writes to one device
	RequestTimeoutMs int    `yaml:"request_timeout_ms"` // Per-request timeout for device HTTP calls
	ListenAddr       string `yaml:"listen_addr"`        // Local API listen address for the daemon
}

// Default preference values.
const (
	DefaultScanTimeout      = 10
	DefaultFlushIntervalMs  = 150
	DefaultRequestTimeoutMs = 2000
	DefaultListenAddr       = "127.0.0.1:9124"
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

func defaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:     true,
		ScanTimeout:      DefaultScanTimeout,
		FlushIntervalMs:  DefaultFlushIntervalMs,
		RequestTimeoutMs: DefaultRequestTimeoutMs,
		ListenAddr:       DefaultListenAddr,
	}
}

// FlushInterval returns the configured flush interval as a duration.
func (p *Preferences) FlushInterval() time.Duration {
	if p.FlushIntervalMs <= 0 {
		return DefaultFlushIntervalMs * time.Millisecond
	}
	return time.Duration(p.FlushIntervalMs) * time.Millisecond
}

// RequestTimeout returns the configured request timeout as a duration.
func (p *Preferences) RequestTimeout() time.Duration {
	if p.RequestTimeoutMs <= 0 {
		return DefaultRequestTimeoutMs * time.Millisecond
	}
	return time.Duration(p.RequestTimeoutMs) * time.Millisecond
}

// GetDevice retrieves device metadata by identity.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(identity string) *Device {
	return r.Devices[identity]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(identity string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[identity]; exists {
		return device
	}

	device := &Device{}
	r.Devices[identity] = device
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp and control
// endpoint for a device.
func (r *Registry) UpdateDeviceLastSeen(identity, addr string) {
	device := r.EnsureDevice(identity)
	device.LastSeen = time.Now()
	device.LastAddr = addr
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(identity, nickname string) {
	device := r.EnsureDevice(identity)
	device.Nickname = nickname
}

// SetDeviceSerial records the serial number read from accessory info.
func (r *Registry) SetDeviceSerial(identity, serial string) {
	device := r.EnsureDevice(identity)
	device.Serial = serial
}

// DisplayName returns the user's nickname for a device, falling back
// to the identity itself when no nickname is set.
func (r *Registry) DisplayName(identity string) string {
	if device := r.GetDevice(identity); device != nil && device.Nickname != "" {
		return device.Nickname
	}
	return identity
}
