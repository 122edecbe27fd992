package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/dispatch"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
	"clinicware.com/callboard/internal/waittime"
)

// Handlers serves the station dispatch API. All dependencies are passed at
// construction; handlers hold no process-wide mutable state.
type Handlers struct {
	engine    *dispatch.Engine
	store     *store.EntityStore
	history   *store.HistoryLog
	estimator *waittime.Estimator
}

// NewHandlers wires the handler set.
func NewHandlers(engine *dispatch.Engine, st *store.EntityStore, hist *store.HistoryLog, estimator *waittime.Estimator) *Handlers {
	return &Handlers{engine: engine, store: st, history: hist, estimator: estimator}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// dispatchStatus maps dispatch engine errors to HTTP statuses.
func dispatchStatus(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrSlotEmpty), errors.Is(err, dispatch.ErrQueueEmpty):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrNotWaiting):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func stationFrom(r *http.Request) (clinic.Station, error) {
	return clinic.ParseStation(mux.Vars(r)["station"])
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterPatient creates a patient queued for triage.
func (h *Handlers) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	priority, err := clinic.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.engine.Register(r.Context(), req.Name, priority, req.Observations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPatients returns every active patient record.
func (h *Handlers) ListPatients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.All())
}

// GetPatient returns one patient record.
func (h *Handlers) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, dispatch.ErrPatientNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePatient mutates the observations note and/or the priority class.
func (h *Handlers) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	var p *clinic.Patient
	if req.Observations != nil {
		updated, err := h.engine.UpdateObservations(r.Context(), id, *req.Observations)
		if err != nil {
			writeError(w, dispatchStatus(err), err)
			return
		}
		p = updated
	}
	if req.Priority != nil {
		priority, err := clinic.ParsePriority(*req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.engine.SetPriority(r.Context(), id, priority)
		if err != nil {
			writeError(w, dispatchStatus(err), err)
			return
		}
		p = updated
	}
	if p == nil {
		writeError(w, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// WithdrawPatient removes the patient entirely.
func (h *Handlers) WithdrawPatient(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Withdraw(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, dispatchStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// ForwardPatient routes the patient to another station's waiting list,
// silently or with an announcement.
func (h *Handlers) ForwardPatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	target, err := clinic.ParseStation(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var p *clinic.Patient
	if req.Announce {
		p, err = h.engine.ForwardAnnounced(r.Context(), id, target, req.Destination)
	} else {
		p, err = h.engine.ForwardSilent(r.Context(), id, target, req.Destination)
	}
	if err != nil {
		writeError(w, dispatchStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// EstimateWait returns the patient's projected wait in minutes.
func (h *Handlers) EstimateWait(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	estimate, err := h.estimator.Estimate(r.Context(), h.store.All(), id)
	if err != nil {
		if errors.Is(err, waittime.ErrNotQueued) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		log.Error().Err(err).Str("patient_id", id).Msg("Failed to estimate wait")
		writeError(w, http.StatusInternalServerError, errors.New("estimate unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patientId":            id,
		"estimatedWait":        estimate.String(),
		"estimatedWaitMinutes": int(estimate / time.Minute),
	})
}

// CallPatient calls a specific patient, or the head of the queue when no
// patient id is given, and takes the station's slot.
func (h *Handlers) CallPatient(w http.ResponseWriter, r *http.Request) {
	st, err := stationFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	var p *clinic.Patient
	if req.PatientID == "" {
		p, err = h.engine.CallNext(r.Context(), st, req.Destination)
	} else {
		p, err = h.engine.Call(r.Context(), req.PatientID, st, req.Destination)
	}
	if err != nil {
		writeError(w, dispatchStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RecallPatient re-announces the station's current call.
func (h *Handlers) RecallPatient(w http.ResponseWriter, r *http.Request) {
	st, err := stationFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.engine.Recall(r.Context(), st)
	if err != nil {
		writeError(w, dispatchStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// FinishCall completes the station's current call.
func (h *Handlers) FinishCall(w http.ResponseWriter, r *http.Request) {
	st, err := stationFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.engine.Finish(r.Context(), st)
	if err != nil {
		writeError(w, dispatchStatus(err), err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "attended"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// StationQueue returns the station's ordered waiting list.
func (h *Handlers) StationQueue(w http.ResponseWriter, r *http.Request) {
	st, err := stationFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	queue := store.WaitingFor(h.store.All(), st)
	metrics.SetQueueDepth(string(st), len(queue))
	writeJSON(w, http.StatusOK, queue)
}

// CurrentCall returns the patient occupying the station's slot.
func (h *Handlers) CurrentCall(w http.ResponseWriter, r *http.Request) {
	st, err := stationFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, ok := h.store.SlotOccupant(st)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DirectRoute broadcasts a patient to an un-modeled room.
func (h *Handlers) DirectRoute(w http.ResponseWriter, r *http.Request) {
	var req directRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.Name == "" || req.Room == "" {
		writeError(w, http.StatusBadRequest, errors.New("name and room are required"))
		return
	}
	h.engine.DirectRoute(r.Context(), req.Name, req.Room)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "announced"})
}

// RecentHistory returns the bounded local window of recent calls.
func (h *Handlers) RecentHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.history.Recent())
}
