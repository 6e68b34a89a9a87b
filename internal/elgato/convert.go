package elgato

import "math"

// The device encodes color temperature in mireds (143-344) while the
// rest of the application works in Kelvin (2900-7000). The two scales
// are related by the linear mapping used by the Elgato Control Center,
// with exact endpoints 143 <-> 7000K and 344 <-> 2900K.

// MiredToKelvin converts a wire temperature value (143-344) to Kelvin.
func MiredToKelvin(mired int) int {
	return int(math.Round((-4100*float64(mired) + 1993300) / 201))
}

// KelvinToMired converts a Kelvin temperature (2900-7000) to the wire
// encoding.
func KelvinToMired(kelvin int) int {
	return int(math.Round((1993300 - 201*float64(kelvin)) / 4100))
}
