package core

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

const DefaultAddr = ":8080"

func GetHttpServer(sc ServiceContext, addr string) *http.Server {
	if addr == "" {
		addr = DefaultAddr
	}

	router := chi.NewRouter()
	router.Get("/api/ping", ping)
	router.Get("/api/coverage", func(w http.ResponseWriter, r *http.Request) { getCoverage(w, r) })
	router.Post("/api/run", func(w http.ResponseWriter, r *http.Request) { postRun(w, r, sc) })

	return &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Minute, // batches are slow, the response is held open
		MaxHeaderBytes: 1 << 20,
	}
}

func ping(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{"message": "pong"})
}

// getCoverage exposes the merged reference interval union directly, handy
// for sanity checking a tolerance before a full run.
func getCoverage(w http.ResponseWriter, r *http.Request) {
	tolerance, err := strconv.Atoi(r.URL.Query().Get("tolerance"))
	if err != nil || tolerance < 1 || tolerance > 3 {
		writeJson(w, http.StatusBadRequest, map[string]string{"error": "tolerance must be 1, 2 or 3"})
		return
	}

	kind := m.TableKind(r.URL.Query().Get("table"))
	if kind == "" {
		kind = m.TableExtended
	}
	if kind != m.TableExtended && kind != m.TableLegacy {
		writeJson(w, http.StatusBadRequest, map[string]string{"error": "unknown reference table"})
		return
	}

	table := GetReferenceTable(kind)
	intervals, days := table.CoverageIntervals(tolerance)

	writeJson(w, http.StatusOK, map[string]any{
		"table":        table.Kind,
		"tolerance":    tolerance,
		"intervals":    intervals,
		"covered_days": days,
	})
}

func postRun(w http.ResponseWriter, r *http.Request, sc ServiceContext) {
	var cfg m.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJson(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := sc.RunBatch(cfg)
	if err != nil {
		var confErr *m.ConfigurationError
		if errors.As(err, &confErr) {
			writeJson(w, http.StatusBadRequest, map[string]string{"error": confErr.Error()})
			return
		}
		log.Printf("batch run failed: %v", err)
		writeJson(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJson(w, http.StatusOK, result)
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
