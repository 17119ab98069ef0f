package audit

import (
	"context"

	"gorm.io/gorm"

	"turnos/internal/models"
)

const (
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionRegister         = "ACCOUNT_REGISTER"
	ActionAccountCreate    = "ACCOUNT_CREATE"
	ActionAccountDelete    = "ACCOUNT_DELETE"
	ActionAccountRole      = "ACCOUNT_ROLE"
	ActionTicketCreate     = "TICKET_CREATE"
	ActionTicketUpdate     = "TICKET_UPDATE"
	ActionTicketStatus     = "TICKET_STATUS"
	ActionTicketDelete     = "TICKET_DELETE"
	ActionTicketExport     = "TICKET_EXPORT"
	ActionCatalogCreate    = "CATALOG_CREATE"
	ActionCatalogRename    = "CATALOG_RENAME"
	ActionCatalogDelete    = "CATALOG_DELETE"
	ActionReceiptsReissued = "RECEIPTS_REGENERATE"

	defaultLimit = 200
	maxLimit     = 1000
)

// Record appends an audit row. accountID is nil for anonymous actions.
func Record(ctx context.Context, db *gorm.DB, accountID *uint, action string, metadata map[string]any) error {
	row := models.AuditLog{AccountID: accountID, Action: action, Metadata: models.NewJSONB(metadata)}
	return db.WithContext(ctx).Create(&row).Error
}

type Filter struct {
	AccountID *uint
	Action    string
	Limit     int
}

// List returns the most recent audit rows first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit)
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	logs := []models.AuditLog{}
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
