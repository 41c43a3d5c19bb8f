package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eventbook/internal/domain"
	"eventbook/internal/export"
	"eventbook/internal/lifecycle"
	"eventbook/internal/models"
)

type createBookingRequest struct {
	CustomerID int64  `json:"customer_id"`
	VendorID   int64  `json:"vendor_id"`
	EventDate  string `json:"event_date"`
	Details    string `json:"details"`
}

type transitionRequest struct {
	ActorID         int64  `json:"actor_id"`
	Action          string `json:"action"`
	OtpCode         string `json:"otp_code,omitempty"`
	Comment         string `json:"comment,omitempty"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createBooking(w, r)
	case http.MethodGet:
		s.listBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.CustomerID == 0 || body.VendorID == 0 {
		writeError(w, http.StatusBadRequest, "customer_id and vendor_id are required")
		return
	}

	eventDate, err := time.Parse("2006-01-02", body.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event_date; expected YYYY-MM-DD")
		return
	}

	booking, err := s.svc.Create(r.Context(), body.CustomerID, body.VendorID, eventDate, body.Details)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	var filter domain.BookingFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := lifecycle.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid vendor_id")
			return
		}
		filter.VendorID = id
	}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		filter.CustomerID = id
	}

	bookings, err := s.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list bookings failed")
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleBookingByID serves GET /api/v1/bookings/{id} and
// POST /api/v1/bookings/{id}/transition.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getBooking(w, r, id)
	case len(parts) == 2 && parts[1] == "transition" && r.Method == http.MethodPost:
		s.transitionBooking(w, r, id)
	case len(parts) == 2 && parts[1] == "history" && r.Method == http.MethodGet:
		s.getBookingHistory(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) getBooking(w http.ResponseWriter, r *http.Request, id int64) {
	booking, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) getBookingHistory(w http.ResponseWriter, r *http.Request, id int64) {
	booking, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": booking.History})
}

func (s *HTTPServer) transitionBooking(w http.ResponseWriter, r *http.Request, id int64) {
	var body transitionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.ActorID == 0 {
		writeError(w, http.StatusBadRequest, "actor_id is required")
		return
	}
	action, err := lifecycle.ParseAction(body.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.svc.Transition(r.Context(), domain.TransitionRequest{
		BookingID:       id,
		ActorID:         body.ActorID,
		Action:          action,
		OtpCode:         body.OtpCode,
		Comment:         body.Comment,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleSweepTimeouts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	affected, err := s.svc.CheckTimeouts(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if affected == nil {
		affected = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"affected": affected})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.svc.List(r.Context(), domain.BookingFilter{WithHistory: true})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list bookings failed")
		return
	}

	fileName := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := export.WriteBookingsWorkbook(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("Export write failed")
	}
}

// errorStatus maps lifecycle errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrOtpExpired), errors.Is(err, lifecycle.ErrOtpMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrRateLimited):
		return http.StatusTooManyRequests
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
