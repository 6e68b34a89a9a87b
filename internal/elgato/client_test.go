package elgato

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse test server port: %v", err)
	}

	return NewClient(u.Hostname(), port), srv
}

func TestClient_FetchState(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/elgato/lights" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"numberOfLights":1,"lights":[{"on":1,"brightness":50,"temperature":290}]}`))
	})

	client, _ := newTestClient(t, handler)

	state, err := client.FetchState(context.Background())
	if err != nil {
		t.Fatalf("FetchState() error = %v", err)
	}

	if !state.On {
		t.Error("state.On = false, want true")
	}
	if state.Brightness != 50 {
		t.Errorf("state.Brightness = %d, want 50", state.Brightness)
	}
	if state.Temperature != MiredToKelvin(290) {
		t.Errorf("state.Temperature = %d, want %d", state.Temperature, MiredToKelvin(290))
	}
}

func TestClient_FetchState_FloorsZeroBrightness(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numberOfLights":1,"lights":[{"on":1,"brightness":0,"temperature":290}]}`))
	})

	client, _ := newTestClient(t, handler)

	state, err := client.FetchState(context.Background())
	if err != nil {
		t.Fatalf("FetchState() error = %v", err)
	}
	if state.Brightness != MinBrightness {
		t.Errorf("state.Brightness = %d, want %d", state.Brightness, MinBrightness)
	}
	if !state.On {
		t.Error("state.On = false, want true")
	}
}

func TestClient_FetchState_EmptyLights(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numberOfLights":0,"lights":[]}`))
	})

	client, _ := newTestClient(t, handler)

	_, err := client.FetchState(context.Background())
	if err == nil {
		t.Fatal("FetchState() = nil error, want parse error")
	}
	devErr, ok := err.(*DeviceError)
	if !ok || devErr.Type != ErrTypeParse {
		t.Errorf("FetchState() error = %v, want parse error", err)
	}
}

func TestClient_PutState(t *testing.T) {
	var got lightsPayload
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/elgato/lights" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
	})

	client, _ := newTestClient(t, handler)

	state := DeviceState{On: true, Brightness: 75, Temperature: 4000}
	if err := client.PutState(context.Background(), state); err != nil {
		t.Fatalf("PutState() error = %v", err)
	}

	if got.NumberOfLights != 1 {
		t.Errorf("payload.NumberOfLights = %d, want 1", got.NumberOfLights)
	}
	if len(got.Lights) != 1 {
		t.Fatalf("payload has %d lights, want 1", len(got.Lights))
	}
	wire := got.Lights[0]
	if wire.On != 1 {
		t.Errorf("wire.On = %d, want 1", wire.On)
	}
	if wire.Brightness != 75 {
		t.Errorf("wire.Brightness = %d, want 75", wire.Brightness)
	}
	if wire.Temperature != KelvinToMired(4000) {
		t.Errorf("wire.Temperature = %d, want %d", wire.Temperature, KelvinToMired(4000))
	}
}

func TestClient_PutState_RejectsInvalidBeforeNetwork(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	})

	client, _ := newTestClient(t, handler)

	err := client.PutState(context.Background(), DeviceState{Brightness: 0, Temperature: 4000})
	if err == nil {
		t.Fatal("PutState() = nil error, want validation error")
	}
	if !IsValidationError(err) {
		t.Errorf("PutState() error = %v, want validation error", err)
	}
	if requests != 0 {
		t.Errorf("device received %d requests, want 0", requests)
	}
}

func TestClient_PutState_HTTPError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, handler)

	err := client.PutState(context.Background(), DeviceState{On: true, Brightness: 50, Temperature: 4000})
	if err == nil {
		t.Fatal("PutState() = nil error, want HTTP error")
	}
	if !IsHTTPError(err) {
		t.Errorf("PutState() error = %v, want HTTP error", err)
	}
}

func TestClient_Timeout_IsUnreachable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	client, srv := newTestClient(t, handler)
	_ = srv
	client.SetTimeout(20 * time.Millisecond)

	_, err := client.FetchState(context.Background())
	if err == nil {
		t.Fatal("FetchState() = nil error, want timeout")
	}
	if !IsUnreachable(err) {
		t.Errorf("IsUnreachable(%v) = false, want true", err)
	}
}

func TestClient_ConnectionRefused_IsUnreachable(t *testing.T) {
	// Port from a closed test server: nothing is listening there.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u, _ := url.Parse(srv.URL)
	srv.Close()

	port, _ := strconv.Atoi(u.Port())
	client := NewClient(u.Hostname(), port)
	client.SetTimeout(500 * time.Millisecond)

	_, err := client.FetchState(context.Background())
	if err == nil {
		t.Fatal("FetchState() = nil error, want transport error")
	}
	if !IsUnreachable(err) {
		t.Errorf("IsUnreachable(%v) = false, want true", err)
	}
}

func TestClient_AccessoryInfo(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/elgato/accessory-info" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"productName": "Elgato Key Light",
			"firmwareVersion": "1.0.3",
			"serialNumber": "CW31J1A00183",
			"displayName": "Desk Light",
			"macAddress": "3C:6A:9D:12:34:56"
		}`))
	})

	client, _ := newTestClient(t, handler)

	info, err := client.AccessoryInfo(context.Background())
	if err != nil {
		t.Fatalf("AccessoryInfo() error = %v", err)
	}
	if info.ProductName != "Elgato Key Light" {
		t.Errorf("info.ProductName = %q", info.ProductName)
	}
	if info.Identity() != "CW31J1A00183" {
		t.Errorf("info.Identity() = %q, want serial number", info.Identity())
	}
}

func TestAccessoryInfo_Identity_FallsBackToMAC(t *testing.T) {
	info := &AccessoryInfo{MacAddress: "3C:6A:9D:12:34:56"}
	if info.Identity() != "3C:6A:9D:12:34:56" {
		t.Errorf("Identity() = %q, want MAC address", info.Identity())
	}
}

func TestClient_SetDisplayName(t *testing.T) {
	var body map[string]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/elgato/accessory-info" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
	})

	client, _ := newTestClient(t, handler)

	if err := client.SetDisplayName(context.Background(), "Studio Left"); err != nil {
		t.Fatalf("SetDisplayName() error = %v", err)
	}
	if body["displayName"] != "Studio Left" {
		t.Errorf("displayName = %q, want %q", body["displayName"], "Studio Left")
	}
}

func TestClient_Rebind(t *testing.T) {
	client := NewClient("192.0.2.10", 9123)
	if client.BaseURL() != "http://192.0.2.10:9123" {
		t.Errorf("BaseURL() = %q", client.BaseURL())
	}

	client.Rebind("192.0.2.20", 0)
	want := "http://192.0.2.20:" + strconv.Itoa(DefaultPort)
	if client.BaseURL() != want {
		t.Errorf("BaseURL() after rebind = %q, want %q", client.BaseURL(), want)
	}
}

func TestDeviceState_String(t *testing.T) {
	s := DeviceState{On: true, Brightness: 50, Temperature: 4000}
	if got := s.String(); !strings.Contains(got, "on") || !strings.Contains(got, "50%") {
		t.Errorf("String() = %q", got)
	}
}
