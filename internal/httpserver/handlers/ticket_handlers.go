package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/services/audit"
	"turnos/internal/services/export"
	"turnos/internal/services/person"
	"turnos/internal/services/ticket"
)

type createTicketReq struct {
	FullName     string `json:"nombreCompleto"`
	NationalID   string `json:"curp"`
	GivenName    string `json:"nombre"`
	PaternalName string `json:"paterno"`
	MaternalName string `json:"materno"`
	Phone        string `json:"telefono"`
	Mobile       string `json:"celular"`
	Email        string `json:"correo"`
	Level        string `json:"nivel"`
	Municipality string `json:"municipio"`
	Subject      string `json:"asunto"`
}

func CreateTicket(tickets *ticket.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTicketReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		actor := auth.Actor(r.Context())
		v, err := tickets.Create(r.Context(), ticket.CreateInput{
			FullName: req.FullName, NationalID: req.NationalID, GivenName: req.GivenName,
			PaternalName: req.PaternalName, MaternalName: req.MaternalName, Phone: req.Phone,
			Mobile: req.Mobile, Email: req.Email, Level: req.Level,
			Municipality: req.Municipality, Subject: req.Subject, AccountID: actor,
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, actor, audit.ActionTicketCreate, map[string]any{
			"ticket_id": v.ID, "numero_turno": v.Number, "municipio": v.Municipality,
		})
		ok(w, envelope{"turno": v, "pdf_url": v.ReceiptURL})
	}
}

type ticketKey struct {
	Number     flexInt `json:"numero_turno"`
	NationalID string  `json:"curp"`
}

func LookupTicket(tickets *ticket.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ticketKey
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		v, err := tickets.Lookup(r.Context(), int(req.Number), req.NationalID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"turno": v})
	}
}

type updateTicketReq struct {
	ticketKey
	FullName     *string `json:"nombreCompleto"`
	GivenName    *string `json:"nombre"`
	PaternalName *string `json:"paterno"`
	MaternalName *string `json:"materno"`
	Phone        *string `json:"telefono"`
	Mobile       *string `json:"celular"`
	Email        *string `json:"correo"`
	Level        *string `json:"nivel"`
	Municipality *string `json:"municipio"`
	Subject      *string `json:"asunto"`
}

func UpdateTicket(tickets *ticket.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateTicketReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		v, err := tickets.Update(r.Context(), ticket.UpdateInput{
			Number:     int(req.Number),
			NationalID: req.NationalID,
			Person: person.Patch{
				FullName: req.FullName, GivenName: req.GivenName, PaternalName: req.PaternalName,
				MaternalName: req.MaternalName, Phone: req.Phone, Mobile: req.Mobile, Email: req.Email,
			},
			Level:        req.Level,
			Municipality: req.Municipality,
			Subject:      req.Subject,
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionTicketUpdate, map[string]any{
			"ticket_id": v.ID, "numero_turno": v.Number,
		})
		ok(w, envelope{"turno": v})
	}
}

func DeleteTicket(tickets *ticket.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := tickets.Delete(r.Context(), id); err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionTicketDelete, map[string]any{"ticket_id": id})
		ok(w, nil)
	}
}

func SetTicketStatus(tickets *ticket.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var body struct {
			Status string `json:"estatus"`
		}
		if err := decode(r, &body); err != nil {
			respondError(w, r, lg, err)
			return
		}
		t, err := tickets.SetStatus(r.Context(), id, body.Status)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionTicketStatus,
			map[string]any{"ticket_id": t.ID, "estatus": t.Status})
		ok(w, envelope{"turno": map[string]any{"id": t.ID, "estatus": t.Status}})
	}
}

type searchReq struct {
	NationalID string `json:"curp"`
	Name       string `json:"nombre"`
}

func SearchTickets(tickets *ticket.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		out, err := tickets.Search(r.Context(), ticket.SearchQuery{NationalID: req.NationalID, Name: req.Name})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"turnos": out})
	}
}

// ExportTickets streams the search result for ?curp= / ?nombre= as XLSX.
func ExportTickets(tickets *ticket.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := ticket.SearchQuery{NationalID: r.URL.Query().Get("curp"), Name: r.URL.Query().Get("nombre")}
		out, err := tickets.Search(r.Context(), q)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		record(r, db, lg, auth.Actor(r.Context()), audit.ActionTicketExport,
			map[string]any{"curp": q.NationalID, "nombre": q.Name, "rows": len(out)})
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName(time.Now()))
		w.WriteHeader(http.StatusOK)
		if err := export.WriteXLSX(w, out); err != nil {
			lg.Errorw("export write failed", "error", err)
		}
	}
}

func DashboardStats(tickets *ticket.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := tickets.Stats(r.Context(), r.URL.Query().Get("municipio"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"stats": st})
	}
}
