package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

const DefaultImage = "default.jpg"

type User struct {
	ID                uint              `gorm:"primaryKey"`
	Username          string            `gorm:"size:150;unique;not null"`
	Email             string            `gorm:"size:254;unique;not null"`
	Password          string            `gorm:"not null"`
	FirstName         string            `gorm:"size:150"`
	LastName          string            `gorm:"size:150"`
	ProfileImage      string            `gorm:"size:255;default:default.jpg"`
	PhoneNumber       *string           `gorm:"size:15;unique"`
	Address           map[string]string `gorm:"serializer:json"`
	Role              string            `gorm:"size:10;not null;default:buyer"`
	IsVerified        bool              `gorm:"not null;default:false"`
	IsActive          bool              `gorm:"not null;default:true"`
	StoreName         *string           `gorm:"size:25;unique"`
	StoreDescription  *string           `gorm:"size:500"`
	Rating            decimal.Decimal   `gorm:"type:decimal(2,1);not null;default:0"`
	Permissions       []string          `gorm:"serializer:json"`
	PasswordChangedAt *time.Time
	LoginTokens       []LoginToken `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func IsValidRole(role string) bool {
	switch role {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}
