package receipt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"

	"turnos/internal/util"
)

const (
	SuffixUpdated     = "actualizado"
	SuffixRegenerated = "regenerado"

	dateLayout = "02/01/2006 15:04:05"
)

// View is the flat field set printed on a receipt.
type View struct {
	TicketID     uint
	Number       int
	Municipality string
	Level        string
	Subject      string
	NationalID   string
	FullName     string
	GivenName    string
	PaternalName string
	MaternalName string
	CreatedAt    time.Time
}

// Payload is the text encoded in the receipt's QR code.
func Payload(v View) string {
	return fmt.Sprintf("CURP: %s\nTurno: %d\nNombre: %s", v.NationalID, v.Number, v.FullName)
}

// Beneficiary is the person the procedure is for: the joined name parts, or
// the applicant's full name when no parts were captured.
func Beneficiary(v View) string {
	if n := util.JoinName(v.GivenName, v.PaternalName, v.MaternalName); n != "" {
		return n
	}
	return v.FullName
}

type Renderer interface {
	Render(v View) ([]byte, error)
}

type PDFRenderer struct{}

func (PDFRenderer) Render(v View) ([]byte, error) {
	const (
		margin = 25.4
		labelW = 50.8
		valueW = 114.3
		lineH  = 5.5
		pad    = 1.6
		qrSide = 38.1
	)
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Comprobante de Turno"), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	date := ""
	if !v.CreatedAt.IsZero() {
		date = v.CreatedAt.Local().Format(dateLayout)
	}
	rows := [][2]string{
		{"Número de Turno:", strconv.Itoa(v.Number)},
		{"Municipio:", v.Municipality},
		{"Nivel:", v.Level},
		{"Asunto:", v.Subject},
		{"CURP:", v.NationalID},
		{"Solicitante (quien realiza el trámite):", v.FullName},
		{"Trámite para (persona beneficiaria):", Beneficiary(v)},
		{"Fecha:", date},
	}
	pdf.SetDrawColor(128, 128, 128)
	for _, r := range rows {
		label, value := tr(r[0]), tr(r[1])
		pdf.SetFont("Helvetica", "B", 12)
		labelLines := pdf.SplitText(label, labelW-2*pad)
		pdf.SetFont("Helvetica", "", 11)
		valueLines := pdf.SplitText(value, valueW-2*pad)
		n := len(labelLines)
		if len(valueLines) > n {
			n = len(valueLines)
		}
		if n == 0 {
			n = 1
		}
		h := float64(n)*lineH + 2*pad

		x, y := pdf.GetXY()
		pdf.Rect(x, y, labelW, h, "D")
		pdf.Rect(x+labelW, y, valueW, h, "D")
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetXY(x+pad, y+pad)
		pdf.MultiCell(labelW-2*pad, lineH, label, "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetXY(x+labelW+pad, y+pad)
		pdf.MultiCell(valueW-2*pad, lineH, value, "", "L", false)
		pdf.SetXY(x, y+h)
	}
	pdf.Ln(10)

	if v.NationalID != "" || v.Number != 0 || v.FullName != "" {
		png, err := qrcode.Encode(Payload(v), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("qr: %w", err)
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr("Código QR (identifica CURP del solicitante):"), "", 1, "L", false, 0, "")
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
		pageW, _ := pdf.GetPageSize()
		pdf.ImageOptions("qr", (pageW-qrSide)/2, pdf.GetY()+2, qrSide, qrSide, true, opts, 0, "")
		pdf.Ln(6)
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr("Este documento es un comprobante de su turno. Por favor, consérvelo para futuras referencias."), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store keeps rendered receipts on local disk.
type Store struct {
	Dir       string
	URLPrefix string
}

func FileName(ticketID uint, suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("turno_%d.pdf", ticketID)
	}
	return fmt.Sprintf("turno_%d_%s.pdf", ticketID, suffix)
}

// Save writes the document and returns the URL it is served under.
func (s Store) Save(ticketID uint, suffix string, doc []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("receipt dir: %w", err)
	}
	name := FileName(ticketID, suffix)
	if err := os.WriteFile(filepath.Join(s.Dir, name), doc, 0o644); err != nil {
		return "", err
	}
	return s.URLPrefix + "/" + name, nil
}

// Generator renders and stores receipts.
type Generator struct {
	Renderer Renderer
	Store    Store
}

func NewGenerator(dir, urlPrefix string) *Generator {
	return &Generator{Renderer: PDFRenderer{}, Store: Store{Dir: dir, URLPrefix: urlPrefix}}
}

func (g *Generator) Generate(v View, suffix string) (string, error) {
	doc, err := g.Renderer.Render(v)
	if err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return g.Store.Save(v.TicketID, suffix, doc)
}
