package elgato

import "fmt"

// Brightness and temperature bounds accepted by the control API.
// Brightness has a lower bound of 1: a value of 0 would act as an
// implicit power-off that bypasses the On flag, so it is never
// transmitted or cached.
const (
	MinBrightness = 1
	MaxBrightness = 100

	// Temperature bounds in Kelvin as exposed to callers.
	MinKelvin = 2900
	MaxKelvin = 7000

	// Temperature bounds in mireds as carried on the wire.
	MinMired = 143
	MaxMired = 344
)

// DeviceState is the controllable state of a single Key Light.
// Temperature is in Kelvin; the wire encoding (mireds) is handled by
// the client.
type DeviceState struct {
	// On is the power flag.
	On bool `json:"on"`

	// Brightness is the light intensity in percent (1-100).
	Brightness int `json:"brightness"`

	// Temperature is the color temperature in Kelvin (2900-7000).
	Temperature int `json:"temperature"`
}

// String returns a human-readable representation of the state.
func (s DeviceState) String() string {
	power := "off"
	if s.On {
		power = "on"
	}
	return fmt.Sprintf("%s, %d%%, %dK", power, s.Brightness, s.Temperature)
}

// AccessoryInfo is the device identity and firmware information
// returned by GET /elgato/accessory-info.
type AccessoryInfo struct {
	ProductName         string   `json:"productName"`
	HardwareBoardType   int      `json:"hardwareBoardType"`
	FirmwareBuildNumber int      `json:"firmwareBuildNumber"`
	FirmwareVersion     string   `json:"firmwareVersion"`
	SerialNumber        string   `json:"serialNumber"`
	DisplayName         string   `json:"displayName"`
	Features            []string `json:"features,omitempty"`
	MacAddress          string   `json:"macAddress,omitempty"`
}

// Identity returns the stable hardware identifier for the device:
// the serial number when present, otherwise the MAC address.
func (a *AccessoryInfo) Identity() string {
	if a.SerialNumber != "" {
		return a.SerialNumber
	}
	return a.MacAddress
}

// lightsPayload is the wire format of GET/PUT /elgato/lights.
// The device always reports numberOfLights=1 for Key Lights.
type lightsPayload struct {
	NumberOfLights int         `json:"numberOfLights"`
	Lights         []lightWire `json:"lights"`
}

// lightWire is the per-light element of the lights payload. On is an
// integer (0/1) and Temperature is in mireds (143-344).
type lightWire struct {
	On          int `json:"on"`
	Brightness  int `json:"brightness"`
	Temperature int `json:"temperature"`
}

// toWire converts a DeviceState to its wire representation.
func toWire(state DeviceState) lightsPayload {
	on := 0
	if state.On {
		on = 1
	}
	return lightsPayload{
		NumberOfLights: 1,
		Lights: []lightWire{
			{
				On:          on,
				Brightness:  state.Brightness,
				Temperature: KelvinToMired(state.Temperature),
			},
		},
	}
}

// fromWire converts the first light of a lights payload to a
// DeviceState. Returns an error when the payload carries no lights.
func fromWire(payload lightsPayload) (DeviceState, error) {
	if len(payload.Lights) == 0 {
		return DeviceState{}, NewParseError("lights payload contains no lights", nil)
	}
	wire := payload.Lights[0]

	// Some firmware reports brightness 0 while a light powers down. A
	// cached 0 would act as an implicit power-off on the next write, so
	// floor it; the On flag alone carries the power state.
	brightness := wire.Brightness
	if brightness < MinBrightness {
		brightness = MinBrightness
	}

	return DeviceState{
		On:          wire.On != 0,
		Brightness:  brightness,
		Temperature: MiredToKelvin(wire.Temperature),
	}, nil
}
