package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"live-quiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an error kind to an HTTP status and a stable code.
// Infrastructure details never reach the client.
func classify(err error) (int, errorPayload) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorPayload{Code: "VALIDATION_ERROR", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorPayload{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, errorPayload{Code: "ALREADY_ANSWERED", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, errorPayload{Code: "INVALID_STATE", Message: err.Error()}
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, errorPayload{Code: "UNAUTHENTICATED", Message: err.Error()}
	default:
		log.Printf("http: internal error: %v", err)
		return http.StatusInternalServerError, errorPayload{Code: "INTERNAL_ERROR", Message: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, payload := classify(err)
	writeJSON(w, status, map[string]errorPayload{"error": payload})
}
