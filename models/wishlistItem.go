package models

import "time"

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"`
	ProductID uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null"`
	Product   Product   `gorm:"constraint:OnDelete:CASCADE"`
	AddedAt   time.Time `gorm:"autoCreateTime"`
}
