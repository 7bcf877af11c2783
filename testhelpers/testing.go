package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Marketplace/models"
)

// TestPassword 測試帳號共用密碼
const TestPassword = "Passw0rd!"

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// SetupTestDB 建立已遷移的記憶體SQLite資料庫
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	//記憶體資料庫每個連線各自獨立，限制為單一連線
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SetupTestRedis 啟動miniredis並回傳連線
func SetupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

// PrivateKey 測試用RSA金鑰，整個測試程序共用
func PrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("Failed to generate RSA key: %v", keyErr)
	}
	return key
}

func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func CreateUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:        name,
		Description: name + " category",
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("Failed to create category %s: %v", name, err)
	}
	return category
}

func CreateProduct(t *testing.T, db *gorm.DB, name string, category *models.Category, seller *models.User) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:        name,
		Description: "A " + name,
		Price:       decimal.RequireFromString("500.00"),
		Quantity:    5,
		CategoryID:  category.ID,
		SellerID:    seller.ID,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to create product %s: %v", name, err)
	}
	return product
}

func CreateOrder(t *testing.T, db *gorm.DB, buyer, seller *models.User, total string, items map[*models.Product]uint) *models.Order {
	t.Helper()

	order := &models.Order{
		UserID:        buyer.ID,
		SellerID:      seller.ID,
		TotalPrice:    decimal.RequireFromString(total),
		PaymentMethod: models.PaymentCashOnDelivery,
		Status:        models.OrderStatusPending,
	}
	for product, quantity := range items {
		order.OrderProducts = append(order.OrderProducts, models.OrderProduct{
			ProductID: product.ID,
			Quantity:  quantity,
		})
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}
