// Package shared holds the response helpers every HTTP handler uses: JSON
// writing and the single mapping from domain error codes to HTTP statuses.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "gridconsent/pkg/domain-errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP shape. Unknown errors
// become an opaque 500; internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var derr *domainerrors.Error
	if !errors.As(err, &derr) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{
			Code:    string(domainerrors.CodeInternal),
			Message: "internal error",
		})
		return
	}
	WriteJSON(w, statusOf(derr.Code), errorBody{
		Code:    string(derr.Code),
		Message: derr.Message,
	})
}

// statusOf is the exhaustive code-to-status mapping.
func statusOf(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeValidation:
		return http.StatusBadRequest
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeNotAuthorized:
		return http.StatusForbidden
	case domainerrors.CodeAlreadyProcessed,
		domainerrors.CodeIllegalTransition,
		domainerrors.CodeIllegalState,
		domainerrors.CodeAlreadyGranted,
		domainerrors.CodePendingSubmission:
		return http.StatusConflict
	case domainerrors.CodeExpired:
		return http.StatusGone
	case domainerrors.CodeDependency:
		return http.StatusBadGateway
	case domainerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
