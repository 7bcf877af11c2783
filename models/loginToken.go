package models

import (
	"gorm.io/gorm"
	"time"
)

// LoginToken 已簽發且尚未登出的Token
type LoginToken struct {
	gorm.Model
	Token          string `gorm:"size:2048;not null"`
	ExpirationTime time.Time
	UserID         uint `gorm:"index;not null"`
	Role           string
}
