// Package elgato implements the HTTP wire protocol of Elgato Key Light
// devices.
//
// Key Lights expose a small unauthenticated HTTP API on port 9123:
//
//	GET  /elgato/lights          current light state
//	PUT  /elgato/lights          set light state
//	GET  /elgato/accessory-info  identity and firmware information
//	PUT  /elgato/accessory-info  set the device display name
//
// The lights payload carries power as an integer (0/1), brightness in
// percent, and color temperature in mireds (143-344). This package
// exposes temperature in Kelvin (2900-7000) and converts at the wire
// boundary.
//
// # State Validation
//
// Out-of-range values are rejected before any network call, never
// clamped. In particular brightness has a floor of 1: a brightness of 0
// would behave as an implicit power-off that bypasses the On flag.
//
// # Errors
//
// All failures are returned as *DeviceError with a classified type.
// Use IsUnreachable to detect transport failures (timeouts, refused
// connections) and IsValidationError for rejected state values.
//
// Every request is bounded by the client timeout (2s by default); a
// hung device never blocks a caller indefinitely.
package elgato
