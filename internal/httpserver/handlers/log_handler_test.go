package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"turnos/internal/models"
	"turnos/internal/services/audit"
	"turnos/internal/testutil"
)

func TestRecordWritesAuditRow(t *testing.T) {
	db := testutil.NewDB(t)
	core, logs := observer.New(zapcore.WarnLevel)
	r := httptest.NewRequest("DELETE", "/api/turno/7", nil)

	record(r, db, zap.New(core).Sugar(), nil, audit.ActionTicketDelete, map[string]any{"ticket_id": 7})

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", audit.ActionTicketDelete).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, logs.Len())
}

func TestRecordLogsFailedWrite(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))
	core, logs := observer.New(zapcore.WarnLevel)
	r := httptest.NewRequest("DELETE", "/api/turno/7", nil)

	record(r, db, zap.New(core).Sugar(), nil, audit.ActionTicketDelete, map[string]any{"ticket_id": 7})

	entries := logs.FilterMessage("audit write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionTicketDelete, entries[0].ContextMap()["action"])
}
