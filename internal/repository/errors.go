package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateErr detects unique constraint violations across the
// supported drivers. gorm translates them for postgres; sqlite reports
// them as plain errors.
func isDuplicateErr(err error) bool {
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
