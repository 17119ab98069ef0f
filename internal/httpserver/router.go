package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/httpserver/handlers"
	"turnos/internal/models"
	"turnos/internal/ratelimit"
	"turnos/internal/services/account"
	"turnos/internal/services/ticket"
)

type Deps struct {
	DB       *gorm.DB
	Log      *zap.SugaredLogger
	Signer   *auth.Signer
	Tickets  *ticket.Service
	Accounts *account.Service
	// Limiter guards public ticket creation; nil disables it.
	Limiter ratelimit.Limiter
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers, otherwise
	// callers can rotate them to dodge the limiter.
	TrustProxy bool

	ReceiptDir       string
	ReceiptURLPrefix string
}

func NewRouter(d Deps) http.Handler {
	db, lg := d.DB, d.Log
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer, middleware.Logger)

	r.Post("/api/login", handlers.Login(d.Accounts, db, lg))
	r.Post("/api/registro", handlers.Register(d.Accounts, db, lg))
	r.Get("/api/public/catalogs/{kind}", handlers.ListCatalog(db, lg))
	r.Post("/api/buscar-turno", handlers.LookupTicket(d.Tickets, lg))

	r.Group(func(public chi.Router) {
		public.Use(auth.OptionalJWT(db, d.Signer))
		public.Put("/api/actualizar-turno", handlers.UpdateTicket(d.Tickets, db, lg))
		public.Group(func(limited chi.Router) {
			if d.Limiter != nil {
				limited.Use(ratelimit.Middleware(d.Limiter, "turno", lg))
			}
			limited.Post("/api/turno", handlers.CreateTicket(d.Tickets, db, lg))
		})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db, d.Signer))
		protected.Get("/api/me", handlers.Me(d.Accounts, lg))
		protected.Post("/api/logout", handlers.Logout(d.Accounts, db, lg))

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(models.RoleAdmin))
			admin.Post("/api/admin/search-turnos", handlers.SearchTickets(d.Tickets, lg))
			admin.Get("/api/admin/export-turnos", handlers.ExportTickets(d.Tickets, db, lg))
			admin.Get("/api/admin/dashboard-stats", handlers.DashboardStats(d.Tickets, lg))
			admin.Delete("/api/turno/{id}", handlers.DeleteTicket(d.Tickets, db, lg))
			admin.Put("/api/turno/{id}/status", handlers.SetTicketStatus(d.Tickets, db, lg))

			admin.Get("/api/catalogs/{kind}", handlers.ListCatalog(db, lg))
			admin.Post("/api/catalogs/{kind}", handlers.CreateCatalogEntry(db, lg))
			admin.Put("/api/catalogs/{kind}/{id}", handlers.RenameCatalogEntry(db, lg))
			admin.Delete("/api/catalogs/{kind}/{id}", handlers.DeleteCatalogEntry(db, lg))

			admin.Get("/api/admin/users", handlers.ListAccounts(d.Accounts, lg))
			admin.Post("/api/admin/users", handlers.CreateAccount(d.Accounts, db, lg))
			admin.Delete("/api/admin/users/{id}", handlers.DeleteAccount(d.Accounts, db, lg))
			admin.Put("/api/admin/users/{id}/role", handlers.SetAccountRole(d.Accounts, db, lg))
			admin.Get("/api/admin/logs", handlers.AuditLogs(db, lg))
		})
	})

	if d.ReceiptDir != "" && d.ReceiptURLPrefix != "" {
		prefix := strings.TrimRight(d.ReceiptURLPrefix, "/")
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(d.ReceiptDir)))
		r.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
			// no directory listings
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
