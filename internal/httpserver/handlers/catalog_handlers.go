package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/services/audit"
	"turnos/internal/services/catalog"
)

func kindParam(r *http.Request) (catalog.Kind, error) {
	return catalog.ParseKind(chi.URLParam(r, "kind"))
}

// ListCatalog serves both the public and the admin listing.
func ListCatalog(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := kindParam(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		items, err := catalog.List(db.WithContext(r.Context()), kind)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"items": items})
	}
}

type catalogReq struct {
	Name string `json:"name"`
}

func CreateCatalogEntry(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := kindParam(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req catalogReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		e, err := catalog.Create(db.WithContext(r.Context()), kind, req.Name)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionCatalogCreate,
			map[string]any{"kind": kind, "id": e.ID, "name": e.Name})
		ok(w, envelope{"item": e})
	}
}

func RenameCatalogEntry(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := kindParam(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req catalogReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		e, err := catalog.Rename(db.WithContext(r.Context()), kind, id, req.Name)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionCatalogRename,
			map[string]any{"kind": kind, "id": e.ID, "name": e.Name})
		ok(w, envelope{"item": e})
	}
}

func DeleteCatalogEntry(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := kindParam(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := catalog.Delete(db.WithContext(r.Context()), kind, id); err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionCatalogDelete,
			map[string]any{"kind": kind, "id": id})
		ok(w, nil)
	}
}
