package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"Marketplace/models"
)

// OrderRepository 訂單資料存取
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindForUser(ctx context.Context, orderID, userID uint) (*models.Order, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Order, error)
	ListByStatus(ctx context.Context, status string) ([]models.Order, error)
	ListByUserAndStatus(ctx context.Context, userID uint, status string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID, userID uint, status models.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, orderID, userID uint) error
	TotalForUser(ctx context.Context, userID uint) (decimal.Decimal, error)
	CountByProduct(ctx context.Context, productID uint) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// 訂單序列化需要的關聯
func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Seller").
		Preload("OrderProducts", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_products.id")
		}).
		Preload("OrderProducts.Product").
		Preload("OrderProducts.Product.Category").
		Preload("OrderProducts.Product.Seller")
}

// Create 在同一個交易中寫入訂單與所有明細
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.OrderProducts
		order.OrderProducts = nil

		if err := tx.Omit("User", "Seller", "OrderProducts").Create(order).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Omit("Product").Create(&items[i]).Error; err != nil {
				return err
			}
		}

		order.OrderProducts = items
		return nil
	})
	if err != nil {
		return err
	}

	var created models.Order
	if err := preloadOrder(r.db.WithContext(ctx)).First(&created, order.ID).Error; err != nil {
		return err
	}
	*order = created
	return nil
}

func (r *orderRepository) FindForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var order models.Order
	err := preloadOrder(r.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	orders := []models.Order{}
	err := preloadOrder(r.db.WithContext(ctx)).
		Where(query, args...).
		Order("id").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	return r.list(ctx, "user_id = ?", userID)
}

func (r *orderRepository) ListByStatus(ctx context.Context, status string) ([]models.Order, error) {
	return r.list(ctx, "status = ?", status)
}

func (r *orderRepository) ListByUserAndStatus(ctx context.Context, userID uint, status string) ([]models.Order, error) {
	return r.list(ctx, "user_id = ? AND status = ?", userID, status)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID, userID uint, status models.OrderStatus) (*models.Order, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND user_id = ?", orderID, userID).
		Update("status", status)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindForUser(ctx, orderID, userID)
}

// Delete 在同一個交易中刪除訂單與其明細
func (r *orderRepository) Delete(ctx context.Context, orderID, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Select("id").
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&order).Error
		if err != nil {
			return translate(err)
		}

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderProduct{}).Error; err != nil {
			return err
		}
		return tx.Delete(&order).Error
	})
}

func (r *orderRepository) TotalForUser(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("user_id = ?", userID).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// CountByProduct 統計所有使用者訂單中引用該商品的明細筆數
func (r *orderRepository) CountByProduct(ctx context.Context, productID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderProduct{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}
