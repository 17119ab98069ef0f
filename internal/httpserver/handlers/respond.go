package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"turnos/internal/apperr"
)

type envelope map[string]any

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// ok wraps fields in the success envelope.
func ok(w http.ResponseWriter, fields envelope) {
	out := envelope{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	respondJSON(w, out)
}

// respondError maps err onto its HTTP status. Unexpected errors are logged.
func respondError(w http.ResponseWriter, r *http.Request, lg *zap.SugaredLogger, err error) {
	if apperr.KindOf(err) == apperr.Unexpected {
		lg.Errorw("request failed", "error", err, "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
	}
	apperr.WriteJSON(w, err)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Invalid(apperr.CodeInvalidInput, "JSON inválido: %v", err)
}

func idParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(apperr.CodeInvalidInput, "Identificador inválido")
	}
	return uint(id), nil
}

// flexInt accepts a JSON number or a numeric string, as sent by HTML forms.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return apperr.Invalid(apperr.CodeInvalidInput, "Se requiere número de turno y CURP")
	}
	*n = flexInt(v)
	return nil
}
