package api

import (
	"net/http"

	"github.com/eddygk/dns-bench-sub000/internal/service"
)

// HandleStartBenchmark returns a handler for POST /benchmark/start.
func HandleStartBenchmark(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.StartRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		runID, err := svc.StartRun(req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, map[string]string{
			"run_id": runID,
			"status": "started",
		})
	}
}

// HandleBenchmarkStatus returns a handler for GET /benchmark/{id}/status.
func HandleBenchmarkStatus(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.RunStatus(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

// HandleCancelBenchmark returns a handler for POST /benchmark/{id}/cancel.
func HandleCancelBenchmark(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CancelRun(r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}
