package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 查無資料，或資料不屬於目前使用者
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
