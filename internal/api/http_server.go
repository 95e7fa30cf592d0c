package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gout/internal/config"
	"gout/internal/database"
	"gout/internal/export"
	"gout/internal/metrics"
	"gout/internal/service"

	"github.com/rs/zerolog"
)

// IdempotencyKeyHeader carries the caller-supplied UUID that makes
// mutating requests safe to retry.
const IdempotencyKeyHeader = "idempotent-key"

// HTTPServer exposes the booking, wallet and settlement operations.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings *service.BookingService
	payments *service.PaymentService
	wallets  *service.WalletService
	tours    *service.TourService
	reports  *export.ReportService
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings *service.BookingService,
	payments *service.PaymentService,
	wallets *service.WalletService,
	tours *service.TourService,
	reports *export.ReportService,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		payments: payments,
		wallets:  wallets,
		tours:    tours,
		reports:  reports,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /api/v1/tours", srv.handleListTours)
	mux.HandleFunc("POST /api/v1/tours", srv.handlePublishTour)
	mux.HandleFunc("POST /api/v1/tours/{tourId}/capacity/race-sim", srv.handleCapacityRaceSim)
	mux.HandleFunc("POST /api/v1/bookings/tours/{tourId}", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{bookingId}", srv.handleGetBooking)
	mux.HandleFunc("PUT /api/v1/bookings/{bookingId}/cancel", srv.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/wallets/top-up", srv.handleTopUp)
	mux.HandleFunc("GET /api/v1/wallets/{ownerKind}/{ownerId}", srv.handleGetWallet)
	mux.HandleFunc("POST /api/v1/payments/{bookingId}", srv.handlePayBooking)
	mux.HandleFunc("GET /api/v1/payments/qr/{bookingId}", srv.handleGetQrContent)
	mux.HandleFunc("GET /api/v1/reports/{kind}", srv.handleReport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// mapError translates the service error taxonomy to HTTP status codes.
// Insufficient capacity and balance are expected business outcomes and
// get their own codes so clients can react to them.
func mapError(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, database.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, database.ErrInsufficientCapacity):
		return http.StatusConflict
	case errors.Is(err, database.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := mapError(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

func idempotencyKey(r *http.Request) string {
	return r.Header.Get(IdempotencyKeyHeader)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
