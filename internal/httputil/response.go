package httputil

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/amoret/amoret/internal/fault"
)

// Envelope is the response shape shared by every route: errors omit Data.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON sends a JSON body with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondSuccess resolves the success message for (domain, layer, code) and
// sends the envelope. Data may be nil.
func RespondSuccess(w http.ResponseWriter, statusCode int, domain, layer string, code int, data any) {
	message, _ := lookupMessage("success", domain, layer, code)
	RespondJSON(w, Envelope{Status: statusCode, Message: message, Data: data}, statusCode)
}

// RespondError sends the error envelope resolved from (domain, layer, code).
// Unknown codes degrade to a generic message rather than exposing internals.
func RespondError(w http.ResponseWriter, statusCode int, domain, layer string, code int) {
	message, _ := lookupMessage("error", domain, layer, code)
	RespondJSON(w, Envelope{Status: statusCode, Message: message}, statusCode)
}

// RespondFault translates a fault into its envelope using the fault's own
// tuple and HTTP-equivalent status.
func RespondFault(w http.ResponseWriter, err error) {
	f := fault.From(err)
	if f == nil {
		RespondJSON(w, Envelope{
			Status:  http.StatusInternalServerError,
			Message: genericErrorMessage,
		}, http.StatusInternalServerError)
		return
	}
	status := f.Kind.HTTPStatus()
	message, _ := lookupMessage("error", f.Domain, f.Layer, f.Code)
	RespondJSON(w, Envelope{Status: status, Message: message}, status)
}
