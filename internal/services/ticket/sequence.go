package ticket

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turnos/internal/models"
)

var errCounterUnavailable = errors.New("ticket counter unavailable")

// lockCounter takes the row lock on the municipality's counter, creating the
// row on first use. The lock is held until the surrounding transaction ends.
func lockCounter(tx *gorm.DB, municipalityID uint) error {
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.Model(&models.TicketCounter{}).
			Where("municipality_id = ?", municipalityID).
			UpdateColumn("last_number", gorm.Expr("last_number + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.TicketCounter{MunicipalityID: municipalityID}).Error
		if err != nil {
			return err
		}
	}
	return errCounterUnavailable
}

func highestSequence(tx *gorm.DB, municipalityID uint) (int, error) {
	var max int64
	err := tx.Model(&models.Ticket{}).
		Where("municipality_id = ?", municipalityID).
		Select("COALESCE(MAX(sequence_number), 0)").
		Scan(&max).Error
	return int(max), err
}

func setCounter(tx *gorm.DB, municipalityID uint, n int) error {
	return tx.Model(&models.TicketCounter{}).
		Where("municipality_id = ?", municipalityID).
		UpdateColumn("last_number", n).Error
}

// NextSequence returns one plus the highest number in use in the
// municipality, so the number of a deleted or moved-out newest ticket is
// handed out again. It must run inside the transaction that inserts the
// ticket: concurrent creators for the same municipality queue on the counter
// row instead of reading the same maximum.
func NextSequence(tx *gorm.DB, municipalityID uint) (int, error) {
	if err := lockCounter(tx, municipalityID); err != nil {
		return 0, err
	}
	max, err := highestSequence(tx, municipalityID)
	if err != nil {
		return 0, err
	}
	next := max + 1
	if err := setCounter(tx, municipalityID, next); err != nil {
		return 0, err
	}
	return next, nil
}
