package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openlumen/keylightctl/internal/control"
	"github.com/openlumen/keylightctl/internal/elgato"
	"github.com/openlumen/keylightctl/internal/logging"
)

// deviceJSON is the wire shape of one managed device.
type deviceJSON struct {
	Identity string     `json:"identity"`
	Name     string     `json:"name"`
	Addr     string     `json:"addr"`
	LastSeen time.Time  `json:"last_seen"`
	Degraded bool       `json:"degraded"`
	State    *stateJSON `json:"state,omitempty"`
}

// stateJSON is the wire shape of a device state. Temperature is in
// Kelvin; the mired encoding stays inside the device client.
type stateJSON struct {
	On          bool `json:"on"`
	Brightness  int  `json:"brightness"`
	Temperature int  `json:"temperature"`
}

func toDeviceJSON(info control.DeviceInfo) deviceJSON {
	d := deviceJSON{
		Identity: info.Record.Identity,
		Name:     info.Record.Name,
		Addr:     info.Record.Addr(),
		LastSeen: info.Record.LastSeen,
		Degraded: info.Degraded,
	}
	if info.HasState {
		d.State = &stateJSON{
			On:          info.State.On,
			Brightness:  info.State.Brightness,
			Temperature: info.State.Temperature,
		}
	}
	return d
}

func toStateJSON(state elgato.DeviceState) stateJSON {
	return stateJSON{
		On:          state.On,
		Brightness:  state.Brightness,
		Temperature: state.Temperature,
	}
}

// handleListDevices returns every managed device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.Snapshot()
	devices := make([]deviceJSON, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, toDeviceJSON(info))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// handleGetDevice returns one device by identity.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("id")
	session, ok := s.registry.Get(identity)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	state, hasState := session.State()
	info := control.DeviceInfo{
		Record:   session.Record(),
		State:    state,
		HasState: hasState,
		Degraded: session.Degraded(),
	}
	writeJSON(w, http.StatusOK, toDeviceJSON(info))
}

// handleGetState returns a device's state. With ?refresh=1 the state
// is read from the device; otherwise the session cache is served.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("id")
	session, ok := s.registry.Get(identity)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	if r.URL.Query().Get("refresh") == "1" {
		state, err := session.FetchState(r.Context())
		if err != nil {
			logging.Warn("State refresh failed",
				zap.String("device", identity),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "device unreachable")
			return
		}
		writeJSON(w, http.StatusOK, toStateJSON(state))
		return
	}

	state, hasState := session.State()
	if !hasState {
		writeError(w, http.StatusServiceUnavailable, "state not yet known, try ?refresh=1")
		return
	}
	writeJSON(w, http.StatusOK, toStateJSON(state))
}

// handlePutState buffers a desired state for a device. The write is
// accepted, not performed: the session's flush loop delivers it, so a
// burst of PUTs becomes one device write.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("id")
	session, ok := s.registry.Get(identity)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	var body stateJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	desired := elgato.DeviceState{
		On:          body.On,
		Brightness:  body.Brightness,
		Temperature: body.Temperature,
	}
	if err := session.RequestState(desired); err != nil {
		if elgato.IsValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode API response", zap.Error(err))
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
