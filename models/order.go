package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 訂單狀態
//
// 狀態可由任何狀態改為任何其他狀態，不檢查轉換順序。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus 檢查狀態字串是否合法（區分大小寫）
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, status := range orderStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// PaymentMethod 付款方式
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "COD"
	PaymentCard           PaymentMethod = "CARD"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCashOnDelivery, PaymentCard:
		return PaymentMethod(s), true
	}
	return "", false
}

type Order struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        uint            `gorm:"index;not null"`
	User          User            `gorm:"constraint:OnDelete:CASCADE"`
	SellerID      uint            `gorm:"index;not null"`
	Seller        User            `gorm:"constraint:OnDelete:CASCADE"`
	OrderProducts []OrderProduct  `gorm:"constraint:OnDelete:CASCADE"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentMethod PaymentMethod   `gorm:"size:10;not null;default:COD"`
	Status        OrderStatus     `gorm:"size:10;index;not null;default:Pending"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
