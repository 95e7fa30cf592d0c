package api

import (
	"encoding/json"
	"net/http"
	"time"

	"gout/internal/models"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := s.tours.ListTours(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tours": tours})
}

func (s *HTTPServer) handlePublishTour(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title         string `json:"title"`
		CompanyID     int64  `json:"company_id"`
		CapacityLimit int64  `json:"capacity_limit"`
		PriceCents    int64  `json:"price_cents"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tour, err := s.tours.PublishTour(r.Context(), body.Title, body.CompanyID, body.CapacityLimit, body.PriceCents)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tour)
}

func (s *HTTPServer) handleCapacityRaceSim(w http.ResponseWriter, r *http.Request) {
	tourID, err := pathID(r, "tourId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		At string `json:"at"`
	}
	// Body is optional; default fires two seconds out.
	_ = decodeBody(r, &body)

	at := time.Now().Add(2 * time.Second)
	if body.At != "" {
		parsed, err := time.Parse(time.RFC3339, body.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at; expected RFC3339")
			return
		}
		at = parsed
	}

	s.tours.SimulateCapacityRace(tourID, at)
	writeJSON(w, http.StatusAccepted, map[string]any{"tour_id": tourID, "scheduled_at": at})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	tourID, err := pathID(r, "tourId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.bookings.BookTour(r.Context(), body.UserID, tourID, idempotencyKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "bookingId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.bookings.GetBooking(r.Context(), bookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "bookingId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.bookings.CancelBooking(r.Context(), bookingID, idempotencyKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      int64 `json:"user_id"`
		AmountCents int64 `json:"amount_cents"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txn, replayed, err := s.wallets.TopUp(r.Context(), body.UserID, idempotencyKey(r), body.AmountCents)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"transaction": txn, "replayed": replayed})
}

func (s *HTTPServer) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	ownerKind := r.PathValue("ownerKind")
	if ownerKind != models.OwnerUser && ownerKind != models.OwnerCompany {
		writeError(w, http.StatusBadRequest, "owner kind must be user or company")
		return
	}
	ownerID, err := pathID(r, "ownerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wallet, err := s.wallets.GetWallet(r.Context(), ownerID, ownerKind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *HTTPServer) handlePayBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "bookingId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.payments.PayBooking(r.Context(), bookingID, idempotencyKey(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetQrContent(w http.ResponseWriter, r *http.Request) {
	bookingID, err := pathID(r, "bookingId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.payments.GetQrReference(r.Context(), bookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": ref.Content, "status": ref.Status})
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var path string
	switch r.PathValue("kind") {
	case "bookings":
		path, err = s.reports.BookingsReport(r.Context(), from, to)
	case "transactions":
		path, err = s.reports.TransactionsReport(r.Context(), from, to)
	default:
		writeError(w, http.StatusNotFound, "unknown report kind")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	http.ServeFile(w, r, path)
}

func reportPeriod(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}
