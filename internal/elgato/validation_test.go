package elgato

import (
	"strings"
	"testing"
)

func TestValidateState(t *testing.T) {
	tests := []struct {
		name    string
		state   DeviceState
		wantErr bool
	}{
		{
			name:  "valid mid-range state",
			state: DeviceState{On: true, Brightness: 50, Temperature: 4000},
		},
		{
			name:  "minimum bounds",
			state: DeviceState{Brightness: 1, Temperature: 2900},
		},
		{
			name:  "maximum bounds",
			state: DeviceState{On: true, Brightness: 100, Temperature: 7000},
		},
		{
			name:    "brightness zero rejected",
			state:   DeviceState{Brightness: 0, Temperature: 4000},
			wantErr: true,
		},
		{
			name:    "brightness above range",
			state:   DeviceState{Brightness: 101, Temperature: 4000},
			wantErr: true,
		},
		{
			name:    "negative brightness",
			state:   DeviceState{Brightness: -1, Temperature: 4000},
			wantErr: true,
		},
		{
			name:    "temperature too warm",
			state:   DeviceState{Brightness: 50, Temperature: 2899},
			wantErr: true,
		},
		{
			name:    "temperature too cool",
			state:   DeviceState{Brightness: 50, Temperature: 7001},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateState(tt.state)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ValidateState() = nil, want error")
				}
				if !IsValidationError(err) {
					t.Errorf("ValidateState() error type = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateState() = %v, want nil", err)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName("Desk Light"); err != nil {
		t.Errorf("ValidateDisplayName(%q) = %v, want nil", "Desk Light", err)
	}
	if err := ValidateDisplayName(""); err == nil {
		t.Error("ValidateDisplayName(\"\") = nil, want error")
	}
	long := strings.Repeat("x", 65)
	if err := ValidateDisplayName(long); err == nil {
		t.Error("ValidateDisplayName(65 bytes) = nil, want error")
	}
}
