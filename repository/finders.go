package repository

import (
	"context"

	"gorm.io/gorm"

	"Marketplace/models"
)

// AccountFinder 查詢使用者帳號
type AccountFinder interface {
	FindAccount(ctx context.Context, id uint) (*models.User, error)
}

// ProductFinder 查詢商品
type ProductFinder interface {
	FindProduct(ctx context.Context, id uint) (*models.Product, error)
}

type GormAccountFinder struct {
	db *gorm.DB
}

func NewAccountFinder(db *gorm.DB) *GormAccountFinder {
	return &GormAccountFinder{db: db}
}

func (f *GormAccountFinder) FindAccount(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := f.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

type GormProductFinder struct {
	db *gorm.DB
}

func NewProductFinder(db *gorm.DB) *GormProductFinder {
	return &GormProductFinder{db: db}
}

func (f *GormProductFinder) FindProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := f.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}
