package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"clinicware.com/callboard/internal/metrics"
)

// SetupRoutes configures and returns the station HTTP router.
func SetupRoutes(h *Handlers, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(metrics.Middleware)

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", metricsHandler).Methods("GET")

	r.HandleFunc("/patients", h.RegisterPatient).Methods("POST")
	r.HandleFunc("/patients", h.ListPatients).Methods("GET")
	r.HandleFunc("/patients/{id}", h.GetPatient).Methods("GET")
	r.HandleFunc("/patients/{id}", h.UpdatePatient).Methods("PATCH")
	r.HandleFunc("/patients/{id}", h.WithdrawPatient).Methods("DELETE")
	r.HandleFunc("/patients/{id}/forward", h.ForwardPatient).Methods("POST")
	r.HandleFunc("/patients/{id}/estimate", h.EstimateWait).Methods("GET")

	r.HandleFunc("/stations/{station}/call", h.CallPatient).Methods("POST")
	r.HandleFunc("/stations/{station}/recall", h.RecallPatient).Methods("POST")
	r.HandleFunc("/stations/{station}/finish", h.FinishCall).Methods("POST")
	r.HandleFunc("/stations/{station}/queue", h.StationQueue).Methods("GET")
	r.HandleFunc("/stations/{station}/current", h.CurrentCall).Methods("GET")

	r.HandleFunc("/announcements", h.DirectRoute).Methods("POST")
	r.HandleFunc("/history", h.RecentHistory).Methods("GET")

	return r
}
