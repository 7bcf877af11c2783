package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uint            `gorm:"primaryKey"`
	Name         string          `gorm:"size:50;not null"`
	Description  string          `gorm:"size:500;not null"`
	Price        decimal.Decimal `gorm:"type:decimal(8,2);not null"`
	Quantity     uint            `gorm:"not null"`
	CategoryID   uint            `gorm:"index;not null"`
	Category     Category
	ImageProduct string `gorm:"size:255;default:default.jpg"`
	SellerID     uint   `gorm:"index;not null"`
	Seller       User   `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
