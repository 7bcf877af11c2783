package models

import "time"

type Category struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:50;unique;not null" json:"name"`
	Description   string    `gorm:"size:500;not null" json:"description"`
	ImageCategory string    `gorm:"size:255;default:default.jpg" json:"imageCategory"`
	Products      []Product `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
