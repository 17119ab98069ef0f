package receipt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view() View {
	return View{
		TicketID: 7, Number: 3, Municipality: "CDMX", Level: "Bachillerato",
		Subject: "Inscripción", NationalID: "ABCD123456HDFGRT09",
		FullName: "María López Díaz", GivenName: "Juan", PaternalName: "López",
		MaternalName: "Díaz", CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestPayload(t *testing.T) {
	assert.Equal(t, "CURP: ABCD123456HDFGRT09\nTurno: 3\nNombre: María López Díaz", Payload(view()))
}

func TestBeneficiary(t *testing.T) {
	v := view()
	assert.Equal(t, "Juan López Díaz", Beneficiary(v))
	v.GivenName, v.PaternalName, v.MaternalName = "", "", ""
	assert.Equal(t, "María López Díaz", Beneficiary(v))
}

func TestPDFRendererProducesDocument(t *testing.T) {
	doc, err := PDFRenderer{}.Render(view())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Greater(t, len(doc), 1000)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "turno_7.pdf", FileName(7, ""))
	assert.Equal(t, "turno_7_actualizado.pdf", FileName(7, SuffixUpdated))
}

type fixedRenderer []byte

func (f fixedRenderer) Render(View) ([]byte, error) { return f, nil }

func TestGeneratorWritesUnderDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "receipts")
	g := &Generator{Renderer: fixedRenderer("pdf"), Store: Store{Dir: dir, URLPrefix: "/static/receipts"}}

	url, err := g.Generate(view(), SuffixRegenerated)
	require.NoError(t, err)
	assert.Equal(t, "/static/receipts/turno_7_regenerado.pdf", url)

	b, err := os.ReadFile(filepath.Join(dir, "turno_7_regenerado.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(b))
}
