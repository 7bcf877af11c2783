package models

// OrderProduct 訂單明細，隨訂單一併刪除
type OrderProduct struct {
	ID        uint    `gorm:"primaryKey"`
	OrderID   uint    `gorm:"index;not null"`
	ProductID uint    `gorm:"index;not null"`
	Product   Product `gorm:"constraint:OnDelete:CASCADE"`
	Quantity  uint    `gorm:"not null"`
}
