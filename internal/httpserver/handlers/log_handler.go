package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/services/audit"
)

// AuditLogs returns recent audit rows, newest first. Optional query filters:
// account_id, action and limit.
func AuditLogs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := audit.Filter{Action: q.Get("action")}
		if v, err := strconv.ParseUint(q.Get("account_id"), 10, 64); err == nil {
			id := uint(v)
			f.AccountID = &id
		}
		if v, err := strconv.Atoi(q.Get("limit")); err == nil {
			f.Limit = v
		}
		logs, err := audit.List(r.Context(), db, f)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		ok(w, envelope{"logs": logs})
	}
}

// record writes an audit row for a completed request. The operation has
// already committed, so a failed write is logged rather than returned.
func record(r *http.Request, db *gorm.DB, lg *zap.SugaredLogger, actor *uint, action string, metadata map[string]any) {
	if err := audit.Record(r.Context(), db, actor, action, metadata); err != nil {
		lg.Warnw("audit write failed", "error", err, "action", action,
			"request_id", middleware.GetReqID(r.Context()))
	}
}
