package schema

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"
)

var (
	ErrGrimoireNotFound = errors.New("grimoire not found")
	ErrRowNotFound      = errors.New("row not found")
	ErrDbAccessFailed   = errors.New("db access failed")
)

func GetGrimoire(publicKey string, db *gorm.DB) (Grimoire, error) {
	var grim Grimoire

	result := db.First(&grim, "public_key = ?", publicKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return grim, ErrGrimoireNotFound
		}
		slog.Error("sql error in get grimoire", "public_key", publicKey, "error", result.Error)
		return grim, ErrDbAccessFailed
	}

	return grim, nil
}

func GetRow(rowId int64, db *gorm.DB) (Row, error) {
	var row Row

	result := db.First(&row, "id = ?", rowId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return row, ErrRowNotFound
		}
		slog.Error("sql error in get row", "row_id", rowId, "error", result.Error)
		return row, ErrDbAccessFailed
	}

	return row, nil
}

// ListRows returns all rows of a grimoire sorted by their order value, with
// the store assigned id as a stable tiebreak.
func ListRows(publicKey string, db *gorm.DB) ([]Row, error) {
	var rows []Row

	result := db.Where("gid = ?", publicKey).Order(`"order", id`).Find(&rows)
	if result.Error != nil {
		slog.Error("sql error listing rows", "public_key", publicKey, "error", result.Error)
		return nil, ErrDbAccessFailed
	}

	return rows, nil
}
