// Package shared centralizes JSON response writing and domain error
// translation so every handler surfaces the same envelope. The UI keys its
// notifications off the stable error code, not the HTTP status.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "pdv/pkg/domain-errors"
)

type errorBody struct {
	Error       string            `json:"error"`
	Description string            `json:"error_description"`
	Details     map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the HTTP envelope. Unknown errors
// collapse to a generic internal error so store details never leak.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, errorBody{
			Error:       string(dErrors.CodeInternal),
			Description: "internal error",
		})
		return
	}
	WriteJSON(w, statusFor(de.Code), errorBody{
		Error:       string(de.Code),
		Description: de.Message,
		Details:     de.Details,
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeStockExceeded, dErrors.CodeSessionNotOpen,
		dErrors.CodePaymentIncomplete, dErrors.CodeStockConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeCommitPartial:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
