package api

import (
	"net/http"
	"strconv"

	"github.com/eddygk/dns-bench-sub000/internal/model"
	"github.com/eddygk/dns-bench-sub000/internal/service"
)

// runListResponse is the envelope for GET /results.
type runListResponse struct {
	Results []model.Run `json:"results"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// HandleListResults returns a handler for GET /results.
func HandleListResults(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ParsePagination(r)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		runs, total, err := svc.ListRuns(p.Limit, p.Offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		WriteJSON(w, http.StatusOK, runListResponse{
			Results: runs,
			Total:   total,
			Limit:   p.Limit,
			Offset:  p.Offset,
		})
	}
}

// HandleGetResult returns a handler for GET /results/{id}.
func HandleGetResult(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetRunDetail(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, detail)
	}
}

// HandleGetResultDomains returns a handler for GET /results/{id}/domains:
// every probe row of the run.
func HandleGetResultDomains(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		probes, err := svc.GetProbes(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if probes == nil {
			probes = []model.ProbeResult{}
		}
		WriteJSON(w, http.StatusOK, map[string][]model.ProbeResult{"probes": probes})
	}
}

// HandleGetResultFailures returns a handler for GET /results/{id}/failures.
func HandleGetResultFailures(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analyses, err := svc.GetFailures(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if analyses == nil {
			analyses = []model.FailureAnalysis{}
		}
		WriteJSON(w, http.StatusOK, map[string][]model.FailureAnalysis{"analyses": analyses})
	}
}

// HandleDeleteResult returns a handler for DELETE /results/{id}. Active runs
// are refused; cancel first.
func HandleDeleteResult(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteRun(r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// HandleExportResult returns a handler for GET /results/{id}/export.
func HandleExportResult(svc *service.BenchmarkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.PathValue("id")
		format := r.URL.Query().Get("format")
		data, contentType, err := svc.ExportRun(runID, format)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		ext := "json"
		if format == "csv" {
			ext = "csv"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="benchmark-`+runID+`.`+ext+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
