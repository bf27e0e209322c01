package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// BaseRepository carries the database handle every repository in the package
// embeds. The handle is safe for concurrent use; repositories add no state of
// their own on top of it.
type BaseRepository struct {
	db *gorm.DB
}

func NewBaseRepository(db *gorm.DB) BaseRepository {
	return BaseRepository{db: db}
}

// isDuplicateKey reports whether err is a unique-constraint violation,
// covering gorm's translated error and the raw messages of the sqlite and
// postgres drivers.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
