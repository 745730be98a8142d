package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/pkg/logger"
)

// Envelope wraps every response body, successful or not.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// respondJSON writes the envelope. Encode failures go to the request logger
// that RequestLogger put in the context.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{Success: status < 400, Message: message, Data: data}); err != nil {
		logger.FromContext(r.Context(), nil).Warn("failed to encode response",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, message, nil)
}

// handleServiceError maps domain errors to status codes. Anything unrecognised
// is logged and reported as a generic 500 so store errors never reach clients.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, r, http.StatusBadRequest, "validation failed", verr.Fields)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		var serr *domain.StockError
		if errors.As(err, &serr) {
			respondJSON(w, r, http.StatusConflict, serr.Error(), map[string]any{
				"product_id": serr.ProductID,
				"requested":  serr.Requested,
				"available":  serr.Available,
			})
			return
		}
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, r, http.StatusBadRequest, domain.ErrEmptyCart.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "request timed out")
	default:
		logger.FromContext(r.Context(), log).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a single JSON object from the body, bounded by maxBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.NewValidationError("body", fmt.Sprintf("must not exceed %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return domain.NewValidationError("body", "is required")
		default:
			return domain.NewValidationError("body", "invalid JSON body")
		}
	}
	return nil
}
