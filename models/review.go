package models

import "time"

type Review struct {
	ID        uint    `gorm:"primaryKey"`
	UserID    uint    `gorm:"uniqueIndex:idx_review_user_product;not null"`
	User      User    `gorm:"constraint:OnDelete:CASCADE"`
	ProductID uint    `gorm:"uniqueIndex:idx_review_user_product;not null"`
	Product   Product `gorm:"constraint:OnDelete:CASCADE"`
	Rating    uint    `gorm:"not null"`
	Review    *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
