package models

import "gorm.io/gorm"

var catalogTables = []struct {
	model any
	table string
}{
	{&Level{}, "levels"},
	{&Municipality{}, "municipalities"},
	{&Subject{}, "subjects"},
}

// Migrate brings the schema up to date. Name keys are filled in for rows that
// predate them before their unique indexes are built.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return err
	}
	for _, c := range catalogTables {
		if err := backfillNameKeys(db, c.table); err != nil {
			return err
		}
		index := "idx_" + c.table + "_name_key"
		if db.Migrator().HasIndex(c.model, index) {
			continue
		}
		if err := db.Exec("CREATE UNIQUE INDEX " + index + " ON " + c.table + " (name_key)").Error; err != nil {
			return err
		}
	}
	return backfillSearchKeys(db)
}

func backfillNameKeys(db *gorm.DB, table string) error {
	var rows []CatalogEntry
	if err := db.Table(table).Where("name_key = '' OR name_key IS NULL").Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		if err := db.Table(table).Where("id = ?", r.ID).UpdateColumn("name_key", FoldName(r.Name)).Error; err != nil {
			return err
		}
	}
	return nil
}

func backfillSearchKeys(db *gorm.DB) error {
	var people []Person
	if err := db.Where("search_key = '' OR search_key IS NULL").Find(&people).Error; err != nil {
		return err
	}
	for _, p := range people {
		if err := db.Model(&Person{}).Where("id = ?", p.ID).UpdateColumn("search_key", FoldName(p.FullName)).Error; err != nil {
			return err
		}
	}
	return nil
}
