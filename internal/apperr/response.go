package apperr

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes err as {success:false, error} with the status of its Kind.
func WriteJSON(w http.ResponseWriter, err error) {
	e := Wrap(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Kind.Status())
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(map[string]any{"success": false, "error": e.Error()})
}
