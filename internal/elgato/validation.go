package elgato

import "fmt"

// ValidateState checks a desired DeviceState against the accepted
// ranges. Out-of-range values are rejected, never clamped: silently
// altering a caller's requested brightness or temperature would hide
// bugs in the calling layer.
func ValidateState(state DeviceState) error {
	if state.Brightness < MinBrightness || state.Brightness > MaxBrightness {
		return NewValidationError(fmt.Sprintf(
			"brightness %d out of range [%d, %d]",
			state.Brightness, MinBrightness, MaxBrightness))
	}
	if state.Temperature < MinKelvin || state.Temperature > MaxKelvin {
		return NewValidationError(fmt.Sprintf(
			"temperature %dK out of range [%d, %d]",
			state.Temperature, MinKelvin, MaxKelvin))
	}
	return nil
}

// ValidateDisplayName checks a device display name before it is sent
// to the device. The firmware truncates long names, so reject them
// up front.
func ValidateDisplayName(name string) error {
	if name == "" {
		return NewValidationError("display name must not be empty")
	}
	if len(name) > 64 {
		return NewValidationError(fmt.Sprintf("display name too long: %d bytes (max 64)", len(name)))
	}
	return nil
}
