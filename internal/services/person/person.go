package person

import (
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"turnos/internal/apperr"
	"turnos/internal/models"
	"turnos/internal/util"
)

type Fields struct {
	FullName     string
	NationalID   string
	GivenName    string
	PaternalName string
	MaternalName string
	Phone        string
	Mobile       string
	Email        string
}

// Clean strips markup from the text fields and upper-cases the national id.
func (f Fields) Clean() Fields {
	return Fields{
		FullName:     util.CleanText(f.FullName),
		NationalID:   util.NormalizeNationalID(f.NationalID),
		GivenName:    util.CleanText(f.GivenName),
		PaternalName: util.CleanText(f.PaternalName),
		MaternalName: util.CleanText(f.MaternalName),
		Phone:        util.CleanText(f.Phone),
		Mobile:       util.CleanText(f.Mobile),
		Email:        util.CleanText(f.Email),
	}
}

// column sizes of models.Person
const (
	maxFullName   = 120
	maxNationalID = 18
	maxName       = 60
	maxPhone      = 20
	maxEmail      = 120
)

func fits(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperr.Invalid(apperr.CodeInvalidInput, "El campo %s admite máximo %d caracteres", field, max)
	}
	return nil
}

// CheckLengths rejects values longer than their columns.
func (f Fields) CheckLengths() error {
	checks := []struct {
		field, value string
		max          int
	}{
		{"nombreCompleto", f.FullName, maxFullName},
		{"curp", f.NationalID, maxNationalID},
		{"nombre", f.GivenName, maxName},
		{"paterno", f.PaternalName, maxName},
		{"materno", f.MaternalName, maxName},
		{"telefono", f.Phone, maxPhone},
		{"celular", f.Mobile, maxPhone},
		{"correo", f.Email, maxEmail},
	}
	for _, c := range checks {
		if err := fits(c.field, c.value, c.max); err != nil {
			return err
		}
	}
	return nil
}

// Patch carries optional overwrites; nil fields keep the stored value.
type Patch struct {
	FullName     *string
	GivenName    *string
	PaternalName *string
	MaternalName *string
	Phone        *string
	Mobile       *string
	Email        *string
}

func FindByNationalID(db *gorm.DB, nationalID string) (models.Person, error) {
	var p models.Person
	err := db.Where("national_id = ?", util.NormalizeNationalID(nationalID)).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, apperr.Absent(apperr.CodePersonNotFound, "CURP no encontrada")
	}
	return p, err
}

// ResolveOrCreate returns the person registered under f.NationalID, creating
// it from f when absent. An existing record is reused untouched.
func ResolveOrCreate(tx *gorm.DB, f Fields) (models.Person, bool, error) {
	p, err := FindByNationalID(tx, f.NationalID)
	if err == nil {
		return p, false, nil
	}
	if apperr.CodeOf(err) != apperr.CodePersonNotFound {
		return p, false, err
	}
	f = f.Clean()
	if err := f.CheckLengths(); err != nil {
		return p, false, err
	}
	p = models.Person{
		FullName:     f.FullName,
		NationalID:   f.NationalID,
		GivenName:    f.GivenName,
		PaternalName: f.PaternalName,
		MaternalName: f.MaternalName,
		Phone:        f.Phone,
		Mobile:       f.Mobile,
		Email:        f.Email,
	}
	if err := tx.Create(&p).Error; err != nil {
		return p, false, err
	}
	return p, true, nil
}

// Apply overwrites the supplied fields. Values that are blank once markup is
// stripped keep the stored value.
func Apply(tx *gorm.DB, p *models.Person, patch Patch) error {
	fields := []struct {
		name     string
		max      int
		dst, src *string
	}{
		{"nombreCompleto", maxFullName, &p.FullName, patch.FullName},
		{"nombre", maxName, &p.GivenName, patch.GivenName},
		{"paterno", maxName, &p.PaternalName, patch.PaternalName},
		{"materno", maxName, &p.MaternalName, patch.MaternalName},
		{"telefono", maxPhone, &p.Phone, patch.Phone},
		{"celular", maxPhone, &p.Mobile, patch.Mobile},
		{"correo", maxEmail, &p.Email, patch.Email},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		v := util.CleanText(*f.src)
		if v == "" {
			continue
		}
		if err := fits(f.name, v, f.max); err != nil {
			return err
		}
		*f.dst = v
	}
	return tx.Save(p).Error
}
