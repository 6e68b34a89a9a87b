package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openlumen/keylightctl/internal/control"
	"github.com/openlumen/keylightctl/internal/discovery"
	"github.com/openlumen/keylightctl/internal/elgato"
)

// fakeLight is a minimal httptest-backed Key Light for API tests.
type fakeLight struct {
	mu     sync.Mutex
	state  elgato.DeviceState
	writes int

	srv *httptest.Server
}

func newFakeLight(t *testing.T) *fakeLight {
	t.Helper()

	f := &fakeLight{
		state: elgato.DeviceState{On: true, Brightness: 35, Temperature: 5000},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLight) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/elgato/lights" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.mu.Lock()
		state := f.state
		f.mu.Unlock()
		on := 0
		if state.On {
			on = 1
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"numberOfLights": 1,
			"lights": []map[string]int{{
				"on":          on,
				"brightness":  state.Brightness,
				"temperature": elgato.KelvinToMired(state.Temperature),
			}},
		})

	case http.MethodPut:
		var payload struct {
			Lights []struct {
				On          int `json:"on"`
				Brightness  int `json:"brightness"`
				Temperature int `json:"temperature"`
			} `json:"lights"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Lights) == 0 {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		wire := payload.Lights[0]
		f.mu.Lock()
		f.state = elgato.DeviceState{
			On:          wire.On != 0,
			Brightness:  wire.Brightness,
			Temperature: elgato.MiredToKelvin(wire.Temperature),
		}
		f.writes++
		f.mu.Unlock()
	}
}

func (f *fakeLight) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeLight) record(t *testing.T, identity string) discovery.Record {
	t.Helper()

	u, err := url.Parse(f.srv.URL)
	if err != nil {
		t.Fatalf("failed to parse fake light URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse fake light port: %v", err)
	}
	return discovery.Record{
		Identity: identity,
		Name:     identity,
		Host:     u.Hostname(),
		Port:     port,
		LastSeen: time.Now(),
	}
}

// testAPI wires a registry, an event channel, and an httptest server
// around the API routes.
type testAPI struct {
	api    *httptest.Server
	events chan discovery.Event
	reg    *control.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	reg := control.NewRegistry(control.Options{
		FlushInterval:  30 * time.Millisecond,
		RequestTimeout: time.Second,
	})
	events := make(chan discovery.Event)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		reg.Run(ctx, events)
		close(done)
	}()

	srv := New(&Config{}, reg)
	api := httptest.NewServer(srv.routes())

	t.Cleanup(func() {
		api.Close()
		cancel()
		<-done
	})

	return &testAPI{api: api, events: events, reg: reg}
}

// addDevice announces a device and waits for its session.
func (a *testAPI) addDevice(t *testing.T, rec discovery.Record) {
	t.Helper()

	a.events <- discovery.Event{Type: discovery.Added, Record: rec}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := a.reg.Get(rec.Identity); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session for %q never appeared", rec.Identity)
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestListDevices(t *testing.T) {
	a := newTestAPI(t)
	light := newFakeLight(t)
	a.addDevice(t, light.record(t, "Elgato Key Light 12AB"))

	resp, err := http.Get(a.api.URL + "/api/devices")
	if err != nil {
		t.Fatalf("GET /api/devices error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Devices []deviceJSON `json:"devices"`
	}
	decodeBody(t, resp, &body)

	if len(body.Devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(body.Devices))
	}
	if body.Devices[0].Identity != "Elgato Key Light 12AB" {
		t.Errorf("identity = %q", body.Devices[0].Identity)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	a := newTestAPI(t)

	resp, err := http.Get(a.api.URL + "/api/devices/nope")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetState_RefreshReadsDevice(t *testing.T) {
	a := newTestAPI(t)
	light := newFakeLight(t)
	a.addDevice(t, light.record(t, "Elgato Key Light 12AB"))

	resp, err := http.Get(a.api.URL + "/api/devices/Elgato Key Light 12AB/state?refresh=1")
	if err != nil {
		t.Fatalf("GET state error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var state stateJSON
	decodeBody(t, resp, &state)
	if state.Brightness != 35 || state.Temperature != 5000 || !state.On {
		t.Errorf("state = %+v, want on/35/5000", state)
	}
}

func TestPutState_AcceptedAndFlushed(t *testing.T) {
	a := newTestAPI(t)
	light := newFakeLight(t)
	a.addDevice(t, light.record(t, "Elgato Key Light 12AB"))

	body := bytes.NewBufferString(`{"on":true,"brightness":80,"temperature":4500}`)
	req, _ := http.NewRequest(http.MethodPut, a.api.URL+"/api/devices/Elgato Key Light 12AB/state", body)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT state error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	// The accepted write reaches the device on the next flush tick.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && light.writeCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if light.writeCount() == 0 {
		t.Fatal("accepted state never flushed to the device")
	}

	light.mu.Lock()
	got := light.state
	light.mu.Unlock()
	if got.Brightness != 80 || got.Temperature != 4500 {
		t.Errorf("device state = %+v, want brightness 80, temperature 4500", got)
	}
}

func TestPutState_RejectsOutOfRange(t *testing.T) {
	a := newTestAPI(t)
	light := newFakeLight(t)
	a.addDevice(t, light.record(t, "Elgato Key Light 12AB"))

	body := bytes.NewBufferString(`{"on":true,"brightness":0,"temperature":4500}`)
	req, _ := http.NewRequest(http.MethodPut, a.api.URL+"/api/devices/Elgato Key Light 12AB/state", body)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT state error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestPutState_BadJSON(t *testing.T) {
	a := newTestAPI(t)
	light := newFakeLight(t)
	a.addDevice(t, light.record(t, "Elgato Key Light 12AB"))

	req, _ := http.NewRequest(http.MethodPut, a.api.URL+"/api/devices/Elgato Key Light 12AB/state", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT state error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	a := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(a.api.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error = %v", err)
	}
	defer conn.Close()

	light := newFakeLight(t)
	rec := light.record(t, "Elgato Key Light 12AB")
	a.addDevice(t, rec)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev eventJSON
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if ev.Type != "device_available" {
		t.Errorf("event type = %q, want device_available", ev.Type)
	}
	if ev.Device.Identity != rec.Identity {
		t.Errorf("event identity = %q, want %q", ev.Device.Identity, rec.Identity)
	}

	a.events <- discovery.Event{Type: discovery.Removed, Record: rec}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if ev.Type != "device_gone" {
		t.Errorf("event type = %q, want device_gone", ev.Type)
	}
}
