// Package respond writes JSON responses and maps the domain error taxonomy
// onto HTTP status codes. Module handler packages use it instead of the
// server package so that nothing imports upward.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/aristath/stockroom/internal/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind      domain.ErrorKind `json:"kind"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	RequestID string           `json:"request_id,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error classifies err and writes the standard error body. Unclassified
// errors surface as INTERNAL with their message withheld.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorDetail{
		Kind:      domain.KindInternal,
		Code:      string(domain.KindInternal),
		Message:   "internal error",
		RequestID: middleware.GetReqID(r.Context()),
	}

	if de, ok := domain.AsError(err); ok {
		detail.Kind = de.Kind
		detail.Code = de.Code
		detail.Message = de.Message
	}

	if detail.Kind == domain.KindInternal {
		if log := hlog.FromRequest(r); log != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		}
	}

	JSON(w, StatusFor(detail.Kind), errorBody{Error: detail})
}

// Decode parses a JSON request body into v. A malformed body is a
// VALIDATION error, not a 500.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Wrap(err, domain.KindValidation, "malformed JSON body")
	}
	return nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation, domain.KindRuleViolation:
		return http.StatusUnprocessableEntity
	case domain.KindInsufficientData, domain.KindOutOfRange:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
