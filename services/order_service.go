package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"Marketplace/models"
	"Marketplace/repository"
)

var (
	ErrProductsRequired      = errors.New("products list is required")
	ErrSellerRequired        = errors.New("seller is required")
	ErrSellerNotFound        = errors.New("seller not found")
	ErrTotalPriceRequired    = errors.New("total price is required")
	ErrTotalPriceNotPositive = errors.New("total price must be positive")
	ErrTotalPriceTooLarge    = errors.New("total price exceeds the maximum")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrNoValidProducts       = errors.New("no valid products to order")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrOrderNotFound         = errors.New("order not found")
)

// 明細略過原因
const (
	SkipMissingProductID    = "product_id is required"
	SkipMissingQuantity     = "quantity is required"
	SkipQuantityNotPositive = "quantity must be positive"
	SkipProductNotFound     = "product not found"
	SkipMalformedItem       = "line item must be an object"
	SkipInvalidProductID    = "product_id must be an integer"
	SkipInvalidQuantity     = "quantity must be an integer"
)

// MaxTotalPrice decimal(10,2)欄位可儲存的最大金額
var MaxTotalPrice = decimal.RequireFromString("99999999.99")

// OrderItemInput 單筆訂單明細，nil代表請求中未提供
//
// Malformed非空時代表明細格式錯誤，內容即為略過原因。
type OrderItemInput struct {
	ProductID *int64
	Quantity  *int64
	Malformed string
}

type CreateOrderInput struct {
	BuyerID       uint
	SellerID      uint
	Products      []OrderItemInput
	TotalPrice    *decimal.Decimal
	PaymentMethod string
}

// SkippedProduct 未寫入訂單的明細
type SkippedProduct struct {
	Index     int    `json:"index"`
	ProductID *int64 `json:"product_id"`
	Quantity  *int64 `json:"quantity"`
	Reason    string `json:"reason"`
}

type CreateOrderResult struct {
	Order   *models.Order
	Skipped []SkippedProduct
}

type OrderService struct {
	orders   repository.OrderRepository
	accounts repository.AccountFinder
	products repository.ProductFinder
	log      logrus.FieldLogger
}

func NewOrderService(orders repository.OrderRepository, accounts repository.AccountFinder, products repository.ProductFinder, log logrus.FieldLogger) *OrderService {
	return &OrderService{
		orders:   orders,
		accounts: accounts,
		products: products,
		log:      log,
	}
}

// CreateOrder 驗證請求後建立訂單
//
// 明細逐筆檢查，不合法的明細略過並回報於結果中，只要還有一筆合法明細就建立訂單。
// 總金額直接採用請求中的值，不依商品價格重新計算，也不扣庫存。
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if len(input.Products) == 0 {
		return nil, ErrProductsRequired
	}

	if input.SellerID == 0 {
		return nil, ErrSellerRequired
	}
	if _, err := s.accounts.FindAccount(ctx, input.SellerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("find seller %d: %w", input.SellerID, err)
	}

	if input.TotalPrice == nil || input.TotalPrice.IsZero() {
		return nil, ErrTotalPriceRequired
	}
	if input.TotalPrice.IsNegative() {
		return nil, ErrTotalPriceNotPositive
	}
	if input.TotalPrice.GreaterThan(MaxTotalPrice) {
		return nil, ErrTotalPriceTooLarge
	}

	paymentMethod := models.PaymentCashOnDelivery
	if input.PaymentMethod != "" {
		method, ok := models.ParsePaymentMethod(input.PaymentMethod)
		if !ok {
			return nil, ErrInvalidPaymentMethod
		}
		paymentMethod = method
	}

	var (
		items   []models.OrderProduct
		skipped []SkippedProduct
	)
	for i, item := range input.Products {
		reason, err := s.checkItem(ctx, item)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			skipped = append(skipped, SkippedProduct{
				Index:     i,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    reason,
			})
			continue
		}

		items = append(items, models.OrderProduct{
			ProductID: uint(*item.ProductID),
			Quantity:  uint(*item.Quantity),
		})
	}

	if len(items) == 0 {
		return nil, ErrNoValidProducts
	}

	order := &models.Order{
		UserID:        input.BuyerID,
		SellerID:      input.SellerID,
		TotalPrice:    *input.TotalPrice,
		PaymentMethod: paymentMethod,
		Status:        models.OrderStatusPending,
		OrderProducts: items,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  input.BuyerID,
		"items":    len(items),
		"skipped":  len(skipped),
	}).Info("Order created")

	return &CreateOrderResult{Order: order, Skipped: skipped}, nil
}

// 回傳略過原因，空字串代表明細合法
func (s *OrderService) checkItem(ctx context.Context, item OrderItemInput) (string, error) {
	if item.Malformed != "" {
		return item.Malformed, nil
	}
	if item.ProductID == nil {
		return SkipMissingProductID, nil
	}
	if item.Quantity == nil {
		return SkipMissingQuantity, nil
	}
	if *item.Quantity <= 0 {
		return SkipQuantityNotPositive, nil
	}
	if *item.ProductID <= 0 {
		return SkipProductNotFound, nil
	}

	if _, err := s.products.FindProduct(ctx, uint(*item.ProductID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SkipProductNotFound, nil
		}
		return "", fmt.Errorf("find product %d: %w", *item.ProductID, err)
	}
	return "", nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	order, err := s.orders.FindForUser(ctx, orderID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *OrderService) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// UpdateStatus 修改訂單狀態，訂單不屬於使用者時優先回報查無訂單
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, userID uint, status string) (*models.Order, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	newStatus, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, userID, newStatus)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   newStatus,
	}).Info("Order status updated")
	return order, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID, userID uint) error {
	err := s.orders.Delete(ctx, orderID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}

func (s *OrderService) TotalPrice(ctx context.Context, userID uint) (decimal.Decimal, error) {
	return s.orders.TotalForUser(ctx, userID)
}

func (s *OrderService) CountByProduct(ctx context.Context, productID uint) (int64, error) {
	return s.orders.CountByProduct(ctx, productID)
}

func (s *OrderService) ListByStatus(ctx context.Context, status string) ([]models.Order, error) {
	return s.orders.ListByStatus(ctx, status)
}

func (s *OrderService) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) ListByUserAndStatus(ctx context.Context, userID uint, status string) ([]models.Order, error) {
	return s.orders.ListByUserAndStatus(ctx, userID, status)
}
