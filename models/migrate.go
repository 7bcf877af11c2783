package models

import "gorm.io/gorm"

// Migrate 建立或更新所有資料表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&LoginToken{},
		&Category{},
		&Product{},
		&CartItem{},
		&WishlistItem{},
		&Review{},
		&Order{},
		&OrderProduct{},
	)
}
