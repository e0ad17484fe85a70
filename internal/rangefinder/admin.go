package rangefinder

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/proximity.guard/internal/avoid"
)

// StatusResponse is the JSON body of every lifecycle endpoint. Lifecycle
// misuse (double start, stop when idle) is a warning, not an error.
type StatusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// AttachAdminRoutes mounts the rangefinder lifecycle API on mux. The
// same routes serve the standalone driver daemon and the avoidance
// daemon.
func (m *Manager) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rangefinder/start", m.handleStart)
	mux.HandleFunc("POST /api/rangefinder/stop", m.handleStop)
	mux.HandleFunc("GET /api/rangefinder/info", m.handleInfo)
	mux.HandleFunc("GET /api/rangefinder/regdump", m.handleRegdump)
}

func (m *Manager) handleStart(w http.ResponseWriter, r *http.Request) {
	sel := Selector{Device: r.FormValue("device")}
	switch bus := r.FormValue("bus"); bus {
	case "", "any":
		sel.Bus = BusAny
	case "external":
		sel.Bus = BusExternal
	case "internal":
		sel.Bus = BusInternal
	default:
		writeJSON(w, http.StatusBadRequest, StatusResponse{Status: "error", Detail: "unknown bus " + bus})
		return
	}

	orientation := avoid.Orientation{Mount: avoid.MountForward}
	if rot := r.FormValue("rotation"); rot != "" {
		mount, err := avoid.ParseMount(rot)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, StatusResponse{Status: "error", Detail: err.Error()})
			return
		}
		orientation.Mount = mount
	}

	err := m.Start(sel, orientation)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		writeJSON(w, http.StatusOK, StatusResponse{Status: "warning", Detail: err.Error()})
	case errors.Is(err, ErrNoDevice):
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "error", Detail: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, StatusResponse{Status: "error", Detail: err.Error()})
	default:
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	}
}

func (m *Manager) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := m.Stop(); errors.Is(err, ErrNotRunning) {
		writeJSON(w, http.StatusOK, StatusResponse{Status: "warning", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (m *Manager) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := m.Info()
	if errors.Is(err, ErrNotRunning) {
		writeJSON(w, http.StatusOK, StatusResponse{Status: "warning", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (m *Manager) handleRegdump(w http.ResponseWriter, r *http.Request) {
	regs, err := m.Regdump()
	if errors.Is(err, ErrNotRunning) {
		writeJSON(w, http.StatusOK, StatusResponse{Status: "warning", Detail: err.Error()})
		return
	}
	out := make(map[string]string, len(regs))
	for addr, value := range regs {
		out[fmt.Sprintf("%02x", addr)] = fmt.Sprintf("%02x", value)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
