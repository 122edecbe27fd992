package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"clinicware.com/callboard/internal/clinic"
	"clinicware.com/callboard/internal/metrics"
	"clinicware.com/callboard/internal/store"
)

// PanelHandlers serves the read-only view a public display consumes: the
// current call of every station plus the waiting lists. The panel never
// dispatches; it only mirrors the unit state via the change feed.
type PanelHandlers struct {
	store *store.EntityStore
}

// NewPanelHandlers wires the panel handler set.
func NewPanelHandlers(st *store.EntityStore) *PanelHandlers {
	return &PanelHandlers{store: st}
}

// SetupPanelRoutes configures and returns the panel HTTP router.
func SetupPanelRoutes(h *PanelHandlers, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(metrics.Middleware)

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", metricsHandler).Methods("GET")
	r.HandleFunc("/display", h.Display).Methods("GET")
	r.HandleFunc("/display/queues", h.Queues).Methods("GET")

	return r
}

// Health reports liveness.
func (h *PanelHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Display returns the current call of every station.
func (h *PanelHandlers) Display(w http.ResponseWriter, r *http.Request) {
	current := make(map[clinic.Station]*clinic.Patient, len(clinic.Stations))
	for _, st := range clinic.Stations {
		if p, ok := h.store.SlotOccupant(st); ok {
			current[st] = p
		}
	}
	writeJSON(w, http.StatusOK, current)
}

// Queues returns every station's ordered waiting list.
func (h *PanelHandlers) Queues(w http.ResponseWriter, r *http.Request) {
	all := h.store.All()
	queues := make(map[clinic.Station][]*clinic.Patient, len(clinic.Stations))
	for _, st := range clinic.Stations {
		queue := store.WaitingFor(all, st)
		metrics.SetQueueDepth(string(st), len(queue))
		queues[st] = queue
	}
	writeJSON(w, http.StatusOK, queues)
}
