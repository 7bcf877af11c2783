package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Marketplace/models"
)

// 預設超級管理員帳號
const (
	SuperuserUsername = "admin"
	SuperuserEmail    = "admin@marketplace.local"
	SuperuserPassword = "Admin123!"
)

// 示範資料共用密碼
const DemoPassword = "Demo123!"

// CreateSuperuser 建立預設管理員，已有管理員時略過並回傳false
func CreateSuperuser(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) (bool, error) {
	db = db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		log.Warn("Admin user already exists, skipping creation")
		return false, nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(SuperuserPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	storeName := "Admin Store"
	storeDescription := "Administrative store for system management"
	admin := models.User{
		Username:         SuperuserUsername,
		Email:            SuperuserEmail,
		Password:         string(hashedPassword),
		FirstName:        "Super",
		LastName:         "Admin",
		ProfileImage:     models.DefaultImage,
		Address:          map[string]string{"City": "Admin City", "Country": "Admin Country", "Street": "Admin Street"},
		Role:             models.RoleAdmin,
		IsVerified:       true,
		IsActive:         true,
		StoreName:        &storeName,
		StoreDescription: &storeDescription,
		Rating:           decimal.NewFromInt(5),
		Permissions:      []string{"create", "read", "update", "delete", "manage_users", "manage_orders", "system_admin"},
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}

	log.WithFields(logrus.Fields{
		"username": SuperuserUsername,
		"email":    SuperuserEmail,
	}).Info("Superuser created")
	return true, nil
}

var demoCategories = []models.Category{
	{Name: "Electronics", Description: "Electronic devices and gadgets", ImageCategory: "electronics.jpg"},
	{Name: "Clothing", Description: "Fashion and apparel for all ages", ImageCategory: "clothing.jpg"},
	{Name: "Books", Description: "Books, magazines, and reading materials", ImageCategory: "books.jpg"},
	{Name: "Home & Garden", Description: "Home improvement and gardening supplies", ImageCategory: "home_garden.jpg"},
	{Name: "Sports & Outdoors", Description: "Sports equipment and outdoor gear", ImageCategory: "sports.jpg"},
}

type demoProduct struct {
	name     string
	category string
	price    string
	quantity uint
}

var demoProducts = []demoProduct{
	{"Smartphone", "Electronics", "699.99", 25},
	{"Wireless Headphones", "Electronics", "149.50", 40},
	{"Denim Jacket", "Clothing", "89.00", 15},
	{"Go Programming", "Books", "45.00", 30},
	{"Garden Hose", "Home & Garden", "29.99", 50},
	{"Yoga Mat", "Sports & Outdoors", "35.00", 20},
}

// Clear 清除所有非管理員資料
func Clear(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//依外鍵順序刪除
		for _, model := range []interface{}{
			&models.OrderProduct{},
			&models.Order{},
			&models.Review{},
			&models.CartItem{},
			&models.WishlistItem{},
			&models.Product{},
			&models.Category{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}

		users := tx.Model(&models.User{}).Select("id").Where("role <> ?", models.RoleAdmin)
		if err := tx.Where("user_id IN (?)", users).Delete(&models.LoginToken{}).Error; err != nil {
			return err
		}
		return tx.Where("role <> ?", models.RoleAdmin).Delete(&models.User{}).Error
	})
}

// Populate 建立示範用的分類、賣家、商品、買家及一筆訂單，已存在的資料不重複建立
func Populate(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories := make(map[string]models.Category, len(demoCategories))
		for _, data := range demoCategories {
			category := data
			if err := tx.Where(models.Category{Name: data.Name}).FirstOrCreate(&category).Error; err != nil {
				return fmt.Errorf("create category %s: %w", data.Name, err)
			}
			categories[category.Name] = category
		}

		storeName := "Demo Store"
		seller, err := firstOrCreateUser(tx, models.User{
			Username:  "demo_seller",
			Email:     "seller@marketplace.local",
			Password:  string(hashedPassword),
			FirstName: "Demo",
			LastName:  "Seller",
			Role:      models.RoleSeller,
			StoreName: &storeName,
		})
		if err != nil {
			return err
		}

		buyer, err := firstOrCreateUser(tx, models.User{
			Username:  "demo_buyer",
			Email:     "buyer@marketplace.local",
			Password:  string(hashedPassword),
			FirstName: "Demo",
			LastName:  "Buyer",
			Role:      models.RoleBuyer,
		})
		if err != nil {
			return err
		}

		var products []models.Product
		for _, data := range demoProducts {
			product := models.Product{
				Name:         data.name,
				Description:  "Demo " + data.name,
				Price:        decimal.RequireFromString(data.price),
				Quantity:     data.quantity,
				CategoryID:   categories[data.category].ID,
				ImageProduct: models.DefaultImage,
				SellerID:     seller.ID,
			}
			err := tx.Omit("Category", "Seller").
				Where(models.Product{Name: data.name, SellerID: seller.ID}).
				FirstOrCreate(&product).Error
			if err != nil {
				return fmt.Errorf("create product %s: %w", data.name, err)
			}
			products = append(products, product)
		}

		var orders int64
		if err := tx.Model(&models.Order{}).Where("user_id = ?", buyer.ID).Count(&orders).Error; err != nil {
			return err
		}
		if orders == 0 {
			order := models.Order{
				UserID:        buyer.ID,
				SellerID:      seller.ID,
				TotalPrice:    products[0].Price.Add(products[1].Price.Mul(decimal.NewFromInt(2))),
				PaymentMethod: models.PaymentCashOnDelivery,
				Status:        models.OrderStatusPending,
				OrderProducts: []models.OrderProduct{
					{ProductID: products[0].ID, Quantity: 1},
					{ProductID: products[1].ID, Quantity: 2},
				},
			}
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("create demo order: %w", err)
			}
		}

		log.WithFields(logrus.Fields{
			"categories": len(categories),
			"products":   len(products),
		}).Info("Demo data populated")
		return nil
	})
}

func firstOrCreateUser(tx *gorm.DB, user models.User) (*models.User, error) {
	var existing models.User
	err := tx.Where("username = ?", user.Username).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user.ProfileImage = models.DefaultImage
	user.IsActive = true
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return &user, nil
}
