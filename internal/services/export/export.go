package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"turnos/internal/services/ticket"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheet       = "Turnos"
	dateFmt     = "02/01/2006 15:04:05"
)

var headers = []interface{}{
	"ID", "Turno", "Municipio", "Nivel", "Asunto", "Estatus", "CURP",
	"Nombre completo", "Nombre", "Paterno", "Materno", "Teléfono", "Celular",
	"Correo", "Fecha de registro",
}

func rowOf(v ticket.View) []interface{} {
	return []interface{}{
		v.ID, v.Number, v.Municipality, v.Level, v.Subject, v.Status, v.NationalID,
		v.FullName, v.GivenName, v.PaternalName, v.MaternalName, v.Phone, v.Mobile,
		v.Email, v.CreatedAt.Local().Format(dateFmt),
	}
}

// FileName is the attachment name for an export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("turnos_%s.xlsx", t.Format("2006-01-02"))
}

// WriteXLSX writes tickets as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, tickets []ticket.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return err
	}

	for i, v := range tickets {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := rowOf(v)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	f.SetColWidth(sheet, "C", "E", 20)
	f.SetColWidth(sheet, "G", "H", 30)
	f.SetColWidth(sheet, "N", "O", 25)

	return f.Write(w)
}
