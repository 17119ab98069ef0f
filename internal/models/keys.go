package models

import (
	"strings"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// FoldName is the comparison form of a name: Unicode case folded with inner
// whitespace collapsed. "ÁLVARO  Obregón" and "álvaro obregón" share a key.
func FoldName(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func (l *Level) BeforeSave(*gorm.DB) error {
	l.NameKey = FoldName(l.Name)
	return nil
}

func (m *Municipality) BeforeSave(*gorm.DB) error {
	m.NameKey = FoldName(m.Name)
	return nil
}

func (s *Subject) BeforeSave(*gorm.DB) error {
	s.NameKey = FoldName(s.Name)
	return nil
}

func (e *CatalogEntry) BeforeSave(*gorm.DB) error {
	e.NameKey = FoldName(e.Name)
	return nil
}

func (p *Person) BeforeSave(*gorm.DB) error {
	p.SearchKey = FoldName(p.FullName)
	return nil
}
