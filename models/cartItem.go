package models

import "time"

// CartItem 購物車商品，每位使用者每項商品一筆
type CartItem struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex:idx_cart_user_product;not null"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"`
	ProductID uint      `gorm:"uniqueIndex:idx_cart_user_product;not null"`
	Product   Product   `gorm:"constraint:OnDelete:CASCADE"`
	Quantity  uint      `gorm:"not null;default:1"`
	AddedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time
}
