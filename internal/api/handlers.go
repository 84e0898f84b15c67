package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iancoleman/orderedmap"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// ReportSource provides the most recent finished cycle
type ReportSource interface {
	Latest() *inference.Report
}

// Handler serves the read-only monitor API
type Handler struct {
	source   ReportSource
	airports []inference.AirportProfile
	clients  func() int
	started  time.Time
	logger   *logger.Logger
}

// NewHandler creates a new API handler. clients reports connected websocket
// clients and may be nil.
func NewHandler(source ReportSource, airports []inference.AirportProfile, clients func() int, logger *logger.Logger) *Handler {
	return &Handler{
		source:   source,
		airports: airports,
		clients:  clients,
		started:  time.Now(),
		logger:   logger.Named("api"),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := orderedmap.New()
	response.Set("status", "ok")
	response.Set("uptime_seconds", int64(time.Since(h.started).Seconds()))

	if report := h.source.Latest(); report != nil {
		response.Set("last_cycle", report.CycleAt)
		response.Set("flight_count", report.FlightCount())
	} else {
		response.Set("status", "warming_up")
		response.Set("last_cycle", nil)
		response.Set("flight_count", 0)
	}

	if h.clients != nil {
		response.Set("websocket_clients", h.clients())
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetAirports returns the monitored airports in evaluation order
func (h *Handler) GetAirports(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"airports": h.airports,
		"count":    len(h.airports),
	})
}

// GetReport returns the latest cycle with airports keyed by ICAO in configured order
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report := h.source.Latest()
	if report == nil {
		WriteError(w, http.StatusServiceUnavailable, "no cycle has completed yet")
		return
	}

	airports := orderedmap.New()
	for _, ap := range report.Airports {
		airports.Set(ap.Airport.ICAO, ap)
	}

	response := orderedmap.New()
	response.Set("cycle_at", report.CycleAt)
	response.Set("stats", report.Stats)
	response.Set("airports", airports)

	WriteJSON(w, http.StatusOK, response)
}

// GetAirportReport returns the latest cycle for a single airport
func (h *Handler) GetAirportReport(w http.ResponseWriter, r *http.Request) {
	icao := strings.ToUpper(chi.URLParam(r, "icao"))

	if !h.monitored(icao) {
		WriteError(w, http.StatusNotFound, "airport not monitored: "+icao)
		return
	}

	report := h.source.Latest()
	if report == nil {
		WriteError(w, http.StatusServiceUnavailable, "no cycle has completed yet")
		return
	}

	ap, ok := report.Airport(icao)
	if !ok {
		WriteError(w, http.StatusNotFound, "airport not in report: "+icao)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"cycle_at": report.CycleAt,
		"airport":  ap,
	})
}

func (h *Handler) monitored(icao string) bool {
	for _, ap := range h.airports {
		if ap.ICAO == icao {
			return true
		}
	}
	return false
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error body
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
