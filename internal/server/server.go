// Package server exposes the query surface as a JSON HTTP API, plus the
// operational probes and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"DexLedger/internal/observability"
	"DexLedger/internal/query"
)

type Server struct {
	svc     *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
	http    *http.Server
}

func New(addr string, svc *query.Service, health *observability.HealthChecker, m *observability.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		svc:     svc,
		health:  health,
		metrics: m,
		log:     log.With().Str("component", "server").Logger(),
	}

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthz", health.LivenessHandler)
	router.HandlerFunc(http.MethodGet, "/readyz", health.ReadinessHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.HandlerFunc(http.MethodGet, "/v1/tip", s.instrument("tip", s.handleTip))
	router.HandlerFunc(http.MethodGet, "/v1/pools", s.instrument("pools", s.handlePools))
	router.HandlerFunc(http.MethodGet, "/v1/orders", s.instrument("orders", s.handleOrders))
	router.HandlerFunc(http.MethodGet, "/v1/book", s.instrument("book", s.handleBook))
	router.HandlerFunc(http.MethodGet, "/v1/quote/out", s.instrument("quote_out", s.handleQuoteOut))
	router.HandlerFunc(http.MethodGet, "/v1/quote/in", s.instrument("quote_in", s.handleQuoteIn))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           cors.AllowAll().Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is done, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("http listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// instrument wraps a handler with request counting and latency tracking.
func (s *Server) instrument(endpoint string, h func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		status := h(w, r)
		elapsed := time.Since(start)

		s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

		if status >= http.StatusInternalServerError {
			s.log.Warn().
				Str("request_id", reqID).
				Str("endpoint", endpoint).
				Int("status", status).
				Dur("elapsed", elapsed).
				Msg("request failed")
		}
	}
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) int {
	tip, err := s.svc.Tip(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("tip query failed")
		return writeError(w, http.StatusBadGateway, "backend unavailable")
	}
	return writeJSON(w, http.StatusOK, tip)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) int {
	pools := s.svc.Pools(r.URL.Query().Get("protocol"))
	return writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) int {
	orders := s.svc.Orders(r.URL.Query().Get("protocol"))
	return writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) int {
	q := r.URL.Query()
	protocol, unitA, unitB := q.Get("protocol"), q.Get("unit_a"), q.Get("unit_b")
	if protocol == "" || unitA == "" || unitB == "" {
		return writeError(w, http.StatusBadRequest, "protocol, unit_a and unit_b are required")
	}
	book, err := s.svc.Book(protocol, unitA, unitB)
	if err != nil {
		return writeQueryError(w, err)
	}
	return writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleQuoteOut(w http.ResponseWriter, r *http.Request) int {
	return s.handleQuote(w, r, s.svc.QuoteOut)
}

func (s *Server) handleQuoteIn(w http.ResponseWriter, r *http.Request) int {
	return s.handleQuote(w, r, s.svc.QuoteIn)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, quote func(protocol, inUnit, outUnit string, amount int64) (*query.QuoteResponse, error)) int {
	q := r.URL.Query()
	protocol, inUnit, outUnit := q.Get("protocol"), q.Get("in_unit"), q.Get("out_unit")
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if protocol == "" || inUnit == "" || outUnit == "" || err != nil || amount <= 0 {
		return writeError(w, http.StatusBadRequest, "protocol, in_unit, out_unit and a positive amount are required")
	}

	resp, err := quote(protocol, inUnit, outUnit, amount)
	if err != nil {
		return writeQueryError(w, err)
	}
	return writeJSON(w, http.StatusOK, resp)
}

func writeQueryError(w http.ResponseWriter, err error) int {
	switch {
	case errors.Is(err, query.ErrUnknownProtocol):
		return writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, query.ErrNoLiquidity):
		return writeError(w, http.StatusConflict, err.Error())
	default:
		return writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	return status
}

func writeError(w http.ResponseWriter, status int, msg string) int {
	return writeJSON(w, status, map[string]string{"error": msg})
}
