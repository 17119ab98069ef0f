package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/models"
	"turnos/internal/ratelimit"
	"turnos/internal/services/account"
	"turnos/internal/services/audit"
	"turnos/internal/services/receipt"
	"turnos/internal/services/ticket"
	"turnos/internal/testutil"
)

type harness struct {
	t   *testing.T
	db  *gorm.DB
	srv http.Handler
}

func newHarness(t *testing.T, limiter ratelimit.Limiter, opts ...func(*Deps)) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedCatalogs(t, db)
	signer := auth.NewSigner("test-secret", time.Hour)
	accounts := account.NewService(db, signer)
	dir := t.TempDir()
	d := Deps{
		DB:               db,
		Log:              zap.NewNop().Sugar(),
		Signer:           signer,
		Tickets:          ticket.NewService(db, receipt.NewGenerator(dir, "/static/receipts"), ticket.Options{}),
		Accounts:         accounts,
		Limiter:          limiter,
		ReceiptDir:       dir,
		ReceiptURLPrefix: "/static/receipts",
	}
	for _, o := range opts {
		o(&d)
	}
	_, err := accounts.Create(context.Background(), account.CreateInput{
		Username: "admin", Email: "admin@turnos.local", Password: "admin1234", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	_, err = accounts.Register(context.Background(), account.RegisterInput{
		Username: "capturista", Email: "cap@turnos.local", Password: "secreto",
	})
	require.NoError(t, err)
	return &harness{t: t, db: db, srv: NewRouter(d)}
}

func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (h *harness) login(username, password string) string {
	h.t.Helper()
	rec, out := h.do(http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": password})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return out["token"].(string)
}

func ticketBody(curp string) map[string]string {
	return map[string]string{
		"nombreCompleto": "Ana Lopez Diaz", "curp": curp, "nombre": "Ana",
		"paterno": "Lopez", "materno": "Diaz", "telefono": "3312345678",
		"celular": "3398765432", "correo": "ana@example.com",
		"nivel": "bachillerato", "municipio": "CDMX", "asunto": "Inscripción",
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	rec, _ := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicTicketFlow(t *testing.T) {
	h := newHarness(t, nil)

	rec, out := h.do(http.MethodPost, "/api/turno", "", ticketBody("abcd123456hdfgrt09"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["success"])
	turno := out["turno"].(map[string]any)
	assert.EqualValues(t, 1, turno["numero_turno"])
	assert.Equal(t, models.StatusPending, turno["estatus"])
	pdfURL := out["pdf_url"].(string)
	assert.True(t, strings.HasPrefix(pdfURL, "/static/receipts/turno_"))

	pdf := httptest.NewRecorder()
	h.srv.ServeHTTP(pdf, httptest.NewRequest(http.MethodGet, pdfURL, nil))
	assert.Equal(t, http.StatusOK, pdf.Code)
	assert.True(t, bytes.HasPrefix(pdf.Body.Bytes(), []byte("%PDF-")))

	listing := httptest.NewRecorder()
	h.srv.ServeHTTP(listing, httptest.NewRequest(http.MethodGet, "/static/receipts/", nil))
	assert.Equal(t, http.StatusNotFound, listing.Code)

	rec, out = h.do(http.MethodPost, "/api/turno", "", ticketBody("WXYZ123456HDFGRT09"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, out["turno"].(map[string]any)["numero_turno"])

	rec, out = h.do(http.MethodPost, "/api/buscar-turno", "", map[string]any{"numero_turno": "1", "curp": "ABCD123456HDFGRT09"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Lopez Diaz", out["turno"].(map[string]any)["nombre_completo"])

	rec, out = h.do(http.MethodPost, "/api/buscar-turno", "", map[string]any{"numero_turno": 1, "curp": "ZZZZ000000HDFGRT00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CURP no encontrada", out["error"])

	rec, out = h.do(http.MethodPost, "/api/buscar-turno", "", map[string]any{"curp": "ABCD123456HDFGRT09"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Se requiere número de turno y CURP", out["error"])

	rec, out = h.do(http.MethodPut, "/api/actualizar-turno", "", map[string]any{
		"numero_turno": 1, "curp": "ABCD123456HDFGRT09", "asunto": "No existe", "telefono": "3300000000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := out["turno"].(map[string]any)
	assert.Equal(t, "Inscripción", updated["asunto"])
	assert.Equal(t, "3300000000", updated["telefono"])
	assert.Contains(t, updated["pdf_url"], "_actualizado.pdf")
}

func TestCreateTicketMissingField(t *testing.T) {
	h := newHarness(t, nil)
	body := ticketBody("ABCD123456HDFGRT09")
	delete(body, "celular")

	rec, out := h.do(http.MethodPost, "/api/turno", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Falta campo celular", out["error"])

	body = ticketBody("ABCD123456HDFGRT09")
	body["municipio"] = "Atlantis"
	rec, out = h.do(http.MethodPost, "/api/turno", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nivel/Municipio/Asunto no válidos", out["error"])
}

func TestAuthenticatedCreationRecordsOwner(t *testing.T) {
	h := newHarness(t, nil)
	token := h.login("capturista", "secreto")

	rec, _ := h.do(http.MethodPost, "/api/turno", token, ticketBody("ABCD123456HDFGRT09"))
	require.Equal(t, http.StatusOK, rec.Code)

	var tk models.Ticket
	require.NoError(t, h.db.First(&tk).Error)
	require.NotNil(t, tk.AccountID)

	rec, out := h.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := out["user"].(map[string]any)
	assert.EqualValues(t, *tk.AccountID, me["id"])
	assert.NotContains(t, me, "password_hash")
}

func TestAdminGate(t *testing.T) {
	h := newHarness(t, nil)

	rec, out := h.do(http.MethodPost, "/api/admin/search-turnos", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, out["success"])

	user := h.login("capturista", "secreto")
	rec, _ = h.do(http.MethodPost, "/api/admin/search-turnos", user, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/logout", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(http.MethodGet, "/api/me", user, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out = h.do(http.MethodPost, "/api/login", "", map[string]string{"username": "admin", "password": "mal"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Usuario o contraseña incorrectos", out["error"])
}

func TestAdminTicketOperations(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.login("admin", "admin1234")

	rec, out := h.do(http.MethodPost, "/api/turno", "", ticketBody("ABCD123456HDFGRT09"))
	require.Equal(t, http.StatusOK, rec.Code)
	id := int(out["turno"].(map[string]any)["id"].(float64))
	idPath := "/api/turno/" + itoa(id)

	rec, out = h.do(http.MethodPut, idPath+"/status", admin, map[string]string{"estatus": "Invalid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Estatus inválido", out["error"])

	rec, out = h.do(http.MethodPut, idPath+"/status", admin, map[string]string{"estatus": "Resuelto"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusResolved, out["turno"].(map[string]any)["estatus"])

	rec, out = h.do(http.MethodPost, "/api/admin/search-turnos", admin, map[string]string{"nombre": "lopez"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["turnos"], 1)

	rec, out = h.do(http.MethodGet, "/api/admin/dashboard-stats?municipio=todos", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["total"].(map[string]any)[models.StatusResolved])

	rec, _ = h.do(http.MethodGet, "/api/admin/export-turnos", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec, _ = h.do(http.MethodDelete, idPath, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = h.do(http.MethodDelete, idPath, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Turno no encontrado", out["error"])

	logs, err := audit.List(context.Background(), h.db, audit.Filter{})
	require.NoError(t, err)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, audit.ActionTicketCreate)
	assert.Contains(t, actions, audit.ActionTicketStatus)
	assert.Contains(t, actions, audit.ActionTicketDelete)
	assert.Contains(t, actions, audit.ActionTicketExport)

	rec, out = h.do(http.MethodGet, "/api/admin/logs?action="+audit.ActionTicketDelete, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["logs"], 1)
}

func TestCatalogAdministration(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.login("admin", "admin1234")

	rec, out := h.do(http.MethodGet, "/api/public/catalogs/municipio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["items"], 1)

	rec, out = h.do(http.MethodGet, "/api/public/catalogs/planetas", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Catálogo inválido", out["error"])

	rec, out = h.do(http.MethodPost, "/api/catalogs/nivel", admin, map[string]string{"name": "Primaria"})
	require.Equal(t, http.StatusOK, rec.Code)
	item := out["item"].(map[string]any)
	levelPath := "/api/catalogs/nivel/" + itoa(int(item["id"].(float64)))

	rec, out = h.do(http.MethodPost, "/api/catalogs/nivel", admin, map[string]string{"name": "PRIMARIA"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Ya existe", out["error"])

	rec, out = h.do(http.MethodPut, levelPath, admin, map[string]string{"name": "Secundaria"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Secundaria", out["item"].(map[string]any)["name"])

	rec, _ = h.do(http.MethodDelete, levelPath, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/turno", "", ticketBody("ABCD123456HDFGRT09"))
	require.Equal(t, http.StatusOK, rec.Code)
	var m models.Municipality
	require.NoError(t, h.db.First(&m).Error)
	rec, _ = h.do(http.MethodDelete, "/api/catalogs/municipio/"+itoa(int(m.ID)), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountAdministration(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.login("admin", "admin1234")

	rec, out := h.do(http.MethodPost, "/api/registro", "", map[string]string{"username": "ana", "email": "a@b.mx", "password": "secreto"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "El usuario debe tener al menos 4 caracteres", out["error"])

	rec, out = h.do(http.MethodPost, "/api/admin/users", admin, map[string]string{
		"username": "jefa", "email": "jefa@b.mx", "password": "secreto", "role": "root",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Rol inválido", out["error"])

	rec, out = h.do(http.MethodPost, "/api/admin/users", admin, map[string]string{
		"username": "jefa", "email": "jefa@b.mx", "password": "secreto", "role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	jefa := int(out["user"].(map[string]any)["id"].(float64))

	rec, out = h.do(http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["users"], 3)

	var self models.Account
	require.NoError(t, h.db.Where("username = ?", "admin").First(&self).Error)
	rec, out = h.do(http.MethodDelete, "/api/admin/users/"+itoa(int(self.ID)), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No puedes eliminar tu propio usuario", out["error"])

	rec, out = h.do(http.MethodPut, "/api/admin/users/"+itoa(jefa)+"/role", admin, map[string]string{"role": "user"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", out["user"].(map[string]any)["role"])

	rec, _ = h.do(http.MethodDelete, "/api/admin/users/"+itoa(jefa), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTicketRateLimited(t *testing.T) {
	h := newLimitedHarness(t)

	rec, _ := h.do(http.MethodPost, "/api/turno", "", ticketBody("ABCD123456HDFGRT09"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out := h.do(http.MethodPost, "/api/turno", "", ticketBody("WXYZ123456HDFGRT09"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, out["success"])

	// lookups are not limited
	rec, _ = h.do(http.MethodPost, "/api/buscar-turno", "", map[string]any{"numero_turno": 1, "curp": "ABCD123456HDFGRT09"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func newLimitedHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return newHarness(t, ratelimit.NewRedisLimiter(client, 1, time.Minute), opts...)
}

func (h *harness) createFrom(curp, header, ip string) int {
	h.t.Helper()
	var buf bytes.Buffer
	require.NoError(h.t, json.NewEncoder(&buf).Encode(ticketBody(curp)))
	req := httptest.NewRequest(http.MethodPost, "/api/turno", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, ip)
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	h := newLimitedHarness(t)

	assert.Equal(t, http.StatusOK, h.createFrom("ABCD123456HDFGRT09", "X-Forwarded-For", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, h.createFrom("WXYZ123456HDFGRT09", "X-Forwarded-For", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, h.createFrom("QRST123456HDFGRT09", "X-Real-IP", "203.0.113.3"))
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	h := newLimitedHarness(t, func(d *Deps) { d.TrustProxy = true })

	assert.Equal(t, http.StatusOK, h.createFrom("ABCD123456HDFGRT09", "X-Real-IP", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, h.createFrom("WXYZ123456HDFGRT09", "X-Real-IP", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, h.createFrom("QRST123456HDFGRT09", "X-Real-IP", "203.0.113.2"))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
