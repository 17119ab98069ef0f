package catalog

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"turnos/internal/apperr"
	"turnos/internal/models"
)

type Kind string

const (
	Level        Kind = "level"
	Municipality Kind = "municipality"
	Subject      Kind = "subject"
)

var Kinds = []Kind{Level, Municipality, Subject}

var aliases = map[string]Kind{
	"level":        Level,
	"nivel":        Level,
	"municipality": Municipality,
	"municipio":    Municipality,
	"subject":      Subject,
	"asunto":       Subject,
}

func ParseKind(s string) (Kind, error) {
	if k, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", apperr.Invalid(apperr.CodeInvalidCatalog, "Catálogo inválido")
}

func (k Kind) Table() string {
	switch k {
	case Level:
		return "levels"
	case Municipality:
		return "municipalities"
	default:
		return "subjects"
	}
}

// Column is the tickets column that references entries of this kind.
func (k Kind) Column() string {
	return string(k) + "_id"
}

func (k Kind) Label() string {
	switch k {
	case Level:
		return "Nivel"
	case Municipality:
		return "Municipio"
	default:
		return "Asunto"
	}
}

func valid(k Kind) error {
	for _, c := range Kinds {
		if c == k {
			return nil
		}
	}
	return apperr.Invalid(apperr.CodeInvalidCatalog, "Catálogo inválido")
}

// Resolve finds the entry whose name equals name ignoring case, accents
// included.
func Resolve(db *gorm.DB, kind Kind, name string) (models.CatalogEntry, error) {
	var e models.CatalogEntry
	if err := valid(kind); err != nil {
		return e, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return e, apperr.Missing(strings.ToLower(kind.Label()))
	}
	err := db.Table(kind.Table()).Where("name_key = ?", models.FoldName(name)).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e, apperr.Invalid(apperr.CodeCatalogEntryNotFound, "%s %q no existe", kind.Label(), name)
	}
	return e, err
}

func Get(db *gorm.DB, kind Kind, id uint) (models.CatalogEntry, error) {
	var e models.CatalogEntry
	if err := valid(kind); err != nil {
		return e, err
	}
	err := db.Table(kind.Table()).Where("id = ?", id).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e, apperr.Absent(apperr.CodeCatalogEntryNotFound, "No encontrado")
	}
	return e, err
}

func List(db *gorm.DB, kind Kind) ([]models.CatalogEntry, error) {
	if err := valid(kind); err != nil {
		return nil, err
	}
	items := []models.CatalogEntry{}
	err := db.Table(kind.Table()).Order("name").Find(&items).Error
	return items, err
}

func Create(db *gorm.DB, kind Kind, name string) (models.CatalogEntry, error) {
	var e models.CatalogEntry
	if err := valid(kind); err != nil {
		return e, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return e, apperr.Missing("name")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(tx, kind, name, 0); err != nil {
			return err
		}
		e = models.CatalogEntry{Name: name}
		return tx.Table(kind.Table()).Create(&e).Error
	})
	return e, err
}

func Rename(db *gorm.DB, kind Kind, id uint, name string) (models.CatalogEntry, error) {
	name = strings.TrimSpace(name)
	var e models.CatalogEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if e, err = Get(tx, kind, id); err != nil {
			return err
		}
		if name == "" {
			return apperr.Missing("name")
		}
		if err := ensureUnique(tx, kind, name, id); err != nil {
			return err
		}
		e.Name, e.NameKey = name, models.FoldName(name)
		if err := tx.Table(kind.Table()).Where("id = ?", id).
			UpdateColumns(map[string]any{"name": e.Name, "name_key": e.NameKey}).Error; err != nil {
			return err
		}
		return nil
	})
	return e, err
}

// Delete removes an entry. Entries still referenced by tickets are kept.
func Delete(db *gorm.DB, kind Kind, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, kind, id); err != nil {
			return err
		}
		var refs int64
		if err := tx.Model(&models.Ticket{}).Where(kind.Column()+" = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return apperr.Duplicate(apperr.CodeReferencedEntry, "%s en uso por %d turnos", kind.Label(), refs)
		}
		return tx.Table(kind.Table()).Where("id = ?", id).Delete(&models.CatalogEntry{}).Error
	})
}

func ensureUnique(tx *gorm.DB, kind Kind, name string, except uint) error {
	var n int64
	q := tx.Table(kind.Table()).Where("name_key = ?", models.FoldName(name))
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Duplicate(apperr.CodeDuplicateName, "Ya existe")
	}
	return nil
}
