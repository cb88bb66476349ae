// Package appliances exposes the appliance host API over HTTP.
package appliances

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/chargeplan/core/appliance"
	"github.com/kilianp07/chargeplan/core/charger"
	"github.com/kilianp07/chargeplan/core/clock"
	"github.com/kilianp07/chargeplan/core/logger"
	"github.com/kilianp07/chargeplan/core/model"
)

// DemandRequest is the body of POST /api/appliances/{id}/demand. Either
// TargetSoC or MaxWh must be set.
type DemandRequest struct {
	VehicleID  string `json:"vehicle_id"`
	CurrentSoC int    `json:"current_soc"`
	TargetSoC  int    `json:"target_soc"`
	MinWh      int    `json:"min_wh"`
	MaxWh      int    `json:"max_wh"`
	// Deadline is RFC3339 and optional.
	Deadline string `json:"deadline"`
}

// SwitchRequest is the body of POST /api/appliances/{id}/switch.
type SwitchRequest struct {
	On     bool   `json:"on"`
	PowerW *int   `json:"power_w"`
	Reason string `json:"reason"`
}

// SwitchResponse is the status after a manual switch. Actuated is false when
// the switch was only recorded because the appliance has no switch device.
type SwitchResponse struct {
	appliance.Status
	Actuated bool `json:"actuated"`
}

// Actuator drives the switch device of an appliance on a manual override.
type Actuator interface {
	Override(ctx context.Context, id string, on bool, powerW *int, reason string) (bool, error)
}

// HandlerOption configures the appliance API.
type HandlerOption func(*handler)

// WithActuator routes manual switches to a device. Without one they are
// only recorded.
func WithActuator(act Actuator) HandlerOption {
	return func(h *handler) { h.act = act }
}

type handler struct {
	reg   *appliance.Registry
	clock clock.Clock
	log   logger.Logger
	act   Actuator
}

// NewHandler returns the routes of the appliance API.
func NewHandler(reg *appliance.Registry, clk clock.Clock, log logger.Logger, opts ...HandlerOption) http.Handler {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	h := &handler{reg: reg, clock: clk, log: log}
	for _, o := range opts {
		o(h)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/appliances", h.list)
	mux.HandleFunc("GET /api/appliances/{id}/intervals", h.intervals)
	mux.HandleFunc("GET /api/appliances/{id}/status", h.status)
	mux.HandleFunc("POST /api/appliances/{id}/demand", h.demand)
	mux.HandleFunc("POST /api/appliances/{id}/switch", h.setSwitch)
	return mux
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	all := h.reg.All()
	out := make([]appliance.Status, 0, len(all))
	for _, a := range all {
		out = append(out, a.Status(now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) intervals(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	includePast := false
	if s := r.URL.Query().Get("include_past"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			http.Error(w, "include_past must be a boolean", http.StatusBadRequest)
			return
		}
		includePast = v
	}
	res := a.RuntimeIntervals(h.clock.Now(), includePast)
	if res == nil {
		res = []model.RuntimeInterval{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.Status(h.clock.Now()))
}

func (h *handler) demand(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body DemandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.TargetSoC == 0 && body.MaxWh == 0 {
		http.Error(w, "target_soc or max_wh is required", http.StatusBadRequest)
		return
	}
	req := charger.DemandRequest{
		VehicleID:  body.VehicleID,
		CurrentSoC: body.CurrentSoC,
		TargetSoC:  body.TargetSoC,
		MinWh:      body.MinWh,
		MaxWh:      body.MaxWh,
	}
	if body.Deadline != "" {
		t, err := time.Parse(time.RFC3339, body.Deadline)
		if err != nil {
			http.Error(w, "deadline must be RFC3339", http.StatusBadRequest)
			return
		}
		req.Deadline = t
	}
	now := h.clock.Now()
	if err := a.SetEnergyDemand(r.Context(), now, req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Status(now))
}

func (h *handler) setSwitch(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.PowerW != nil && *body.PowerW < 0 {
		http.Error(w, "power_w must not be negative", http.StatusBadRequest)
		return
	}
	reason := body.Reason
	if reason == "" {
		reason = "api"
	}
	actuated := false
	if h.act != nil {
		var err error
		actuated, err = h.act.Override(r.Context(), a.ID(), body.On, body.PowerW, reason)
		if err != nil {
			h.log.Warnf("api: switch %s: %v", a.ID(), err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	} else {
		a.SetApplianceState(r.Context(), h.clock.Now(), body.On, body.PowerW, false, reason)
	}
	writeJSON(w, http.StatusOK, SwitchResponse{Status: a.Status(h.clock.Now()), Actuated: actuated})
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (*appliance.Appliance, bool) {
	a, err := h.reg.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return a, true
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, appliance.ErrUnknownAppliance):
		code = http.StatusNotFound
	case errors.Is(err, charger.ErrNotConnected):
		code = http.StatusConflict
	}
	h.log.Debugf("api: %v", err)
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
