package elgato

import "testing"

func TestMiredToKelvin(t *testing.T) {
	tests := []struct {
		mired  int
		kelvin int
	}{
		{143, 7000}, // coolest supported
		{344, 2900}, // warmest supported
		{200, 5837},
		{244, 4940},
	}

	for _, tt := range tests {
		if got := MiredToKelvin(tt.mired); got != tt.kelvin {
			t.Errorf("MiredToKelvin(%d) = %d, want %d", tt.mired, got, tt.kelvin)
		}
	}
}

func TestKelvinToMired(t *testing.T) {
	tests := []struct {
		kelvin int
		mired  int
	}{
		{7000, 143},
		{2900, 344},
		{4000, 290},
	}

	for _, tt := range tests {
		if got := KelvinToMired(tt.kelvin); got != tt.mired {
			t.Errorf("KelvinToMired(%d) = %d, want %d", tt.kelvin, got, tt.mired)
		}
	}
}

func TestConversionRoundTrip(t *testing.T) {
	// Every wire value must survive a round trip through Kelvin: the
	// device echoes back what we send, and the cached state must match.
	for mired := MinMired; mired <= MaxMired; mired++ {
		kelvin := MiredToKelvin(mired)
		if kelvin < MinKelvin || kelvin > MaxKelvin {
			t.Fatalf("MiredToKelvin(%d) = %d outside [%d, %d]", mired, kelvin, MinKelvin, MaxKelvin)
		}
		if back := KelvinToMired(kelvin); back != mired {
			t.Errorf("round trip %d -> %dK -> %d", mired, kelvin, back)
		}
	}
}
