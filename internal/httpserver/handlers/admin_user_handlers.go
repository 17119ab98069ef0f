package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/services/account"
	"turnos/internal/services/audit"
)

func ListAccounts(accounts *account.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := accounts.List(r.Context())
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"users": users})
	}
}

func CreateAccount(accounts *account.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req account.CreateInput
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		a, err := accounts.Create(r.Context(), req)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionAccountCreate,
			map[string]any{"account_id": a.ID, "username": a.Username, "role": a.Role})
		ok(w, envelope{"user": a})
	}
}

func DeleteAccount(accounts *account.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := accounts.Delete(r.Context(), auth.FromContext(r.Context()).AccountID, id); err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionAccountDelete, map[string]any{"account_id": id})
		ok(w, nil)
	}
}

func SetAccountRole(accounts *account.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var body struct {
			Role string `json:"role"`
		}
		if err := decode(r, &body); err != nil {
			respondError(w, r, lg, err)
			return
		}
		a, err := accounts.SetRole(r.Context(), auth.FromContext(r.Context()).AccountID, id, body.Role)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionAccountRole,
			map[string]any{"account_id": a.ID, "role": a.Role})
		ok(w, envelope{"user": map[string]any{"id": a.ID, "username": a.Username, "role": a.Role}})
	}
}
