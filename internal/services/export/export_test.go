package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"turnos/internal/services/ticket"
)

func TestWriteXLSX(t *testing.T) {
	rows := []ticket.View{
		{ID: 4, Number: 2, Municipality: "CDMX", Level: "Bachillerato", Subject: "Inscripción",
			Status: "Pendiente", NationalID: "ABCD123456HDFGRT09", FullName: "Ana Lopez",
			CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)},
		{ID: 3, Number: 1, Municipality: "CDMX", Status: "Resuelto", NationalID: "WXYZ123456HDFGRT09"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Turno", got[0][1])
	assert.Equal(t, "Fecha de registro", got[0][14])
	assert.Equal(t, "2", got[1][1])
	assert.Equal(t, "ABCD123456HDFGRT09", got[1][6])
	assert.Equal(t, "Resuelto", got[2][5])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(sheet)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "turnos_2026-03-14.xlsx", FileName(time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)))
}
