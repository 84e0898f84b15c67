package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/approach-monitor/pkg/logger"
)

// Router wires the API handlers and the websocket endpoint
type Router struct {
	handler *Handler
	ws      http.HandlerFunc
	logger  *logger.Logger
}

// NewRouter creates a router. ws may be nil when websocket streaming is off.
func NewRouter(handler *Handler, ws http.HandlerFunc, log *logger.Logger) *Router {
	return &Router{
		handler: handler,
		ws:      ws,
		logger:  log.Named("router"),
	}
}

// Routes returns the HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Get("/health", rt.handler.GetHealth)
		r.Get("/airports", rt.handler.GetAirports)
		r.Get("/airports/{icao}", rt.handler.GetAirportReport)
		r.Get("/report", rt.handler.GetReport)
	})

	if rt.ws != nil {
		r.Get("/ws", rt.ws)
	}

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
