package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/services/account"
	"turnos/internal/services/audit"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func Login(accounts *account.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		tok, err := accounts.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		id := tok.Account.ID
		record(r, db, lg, &id, audit.ActionLogin, map[string]any{"username": tok.Account.Username})
		ok(w, envelope{"token": tok.Token, "expires_at": tok.ExpiresAt, "user": tok.Account})
	}
}

func Register(accounts *account.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req account.RegisterInput
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		a, err := accounts.Register(r.Context(), req)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, &a.ID, audit.ActionRegister, map[string]any{"username": a.Username})
		ok(w, envelope{"user": map[string]any{"id": a.ID, "username": a.Username, "role": a.Role}})
	}
}

func Logout(accounts *account.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.FromContext(r.Context())
		if err := accounts.Logout(r.Context(), c.JWTID); err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionLogout, map[string]any{"jti": c.JWTID})
		ok(w, nil)
	}
}

func Me(accounts *account.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := accounts.Get(r.Context(), auth.FromContext(r.Context()).AccountID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"user": a})
	}
}
