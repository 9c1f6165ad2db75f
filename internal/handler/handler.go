// Package handler serves the browser-facing desk API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/composer"
	"github.com/kiwari-pos/order-desk/internal/desk"
	"github.com/kiwari-pos/order-desk/internal/dispatch"
	"github.com/kiwari-pos/order-desk/internal/middleware"
	"github.com/kiwari-pos/order-desk/internal/rows"
	"github.com/kiwari-pos/order-desk/internal/serials"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"go.uber.org/zap"
)

// SessionRegistry creates and resolves desk sessions.
// Satisfied by *desk.Registry; narrow interface for testability.
type SessionRegistry interface {
	Create(token string, claims *auth.Claims) *desk.Session
	Get(id uuid.UUID) (*desk.Session, error)
	Close(id uuid.UUID) error
}

type sessionKey struct{}

// RequireSession resolves {sid} and refreshes the session's credential
// from the request.
func RequireSession(reg SessionRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "sid"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
				return
			}
			s, err := reg.Get(id)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			s.Authorize(middleware.TokenFromContext(r.Context()), middleware.ClaimsFromContext(r.Context()))

			ctx := context.WithValue(r.Context(), sessionKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *desk.Session {
	s, _ := r.Context().Value(sessionKey{}).(*desk.Session)
	return s
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	var apiErr *upstream.APIError
	switch {
	case isValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrInvoiced),
		errors.Is(err, dispatch.ErrInvoiceInFlight),
		errors.Is(err, composer.ErrSubmitting):
		return http.StatusConflict
	case errors.Is(err, desk.ErrSessionNotFound),
		errors.Is(err, rows.ErrUnknownOrder),
		errors.Is(err, dispatch.ErrUnknownOrder),
		errors.Is(err, composer.ErrUnknownLine),
		errors.Is(err, composer.ErrUnknownAddress),
		errors.Is(err, upstream.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// isValidationError checks if the error is a known validation error that
// should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, dispatch.ErrBadPayload) ||
		errors.Is(err, dispatch.ErrInvalidDeliveryStatus) ||
		errors.Is(err, dispatch.ErrInvalidSerialStatus) ||
		errors.Is(err, composer.ErrNoCustomer) ||
		errors.Is(err, composer.ErrNoAddress) ||
		errors.Is(err, composer.ErrNoItems) ||
		errors.Is(err, composer.ErrInvalidQty) ||
		errors.Is(err, composer.ErrInvalidCustomer) ||
		errors.Is(err, composer.ErrInvalidPaymentType) ||
		errors.Is(err, composer.ErrInvalidChannel) ||
		errors.Is(err, composer.ErrInvalidAmount) ||
		errors.Is(err, serials.ErrNoEntries) ||
		errors.Is(err, serials.ErrDuplicateSerial) ||
		errors.Is(err, serials.ErrTooManySerials)
}

func writeError(w http.ResponseWriter, log *zap.SugaredLogger, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	if status >= http.StatusBadGateway {
		log.Warnw("upstream request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
