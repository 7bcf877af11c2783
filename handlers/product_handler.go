package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"Marketplace/middleware"
	"Marketplace/models"
)

// 商品序列化需要的關聯
func preloadProduct(db *gorm.DB) *gorm.DB {
	return db.Preload("Category").Preload("Seller")
}

// 刪除符合條件的商品及引用它們的資料
func deleteProductsWhere(tx *gorm.DB, query string, args ...interface{}) error {
	productIDs := tx.Model(&models.Product{}).Select("id").Where(query, args...)

	for _, model := range []interface{}{
		&models.CartItem{},
		&models.WishlistItem{},
		&models.Review{},
		&models.OrderProduct{},
	} {
		if err := tx.Where("product_id IN (?)", productIDs).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where(query, args...).Delete(&models.Product{}).Error
}

func (h *Handler) findProduct(c *gin.Context, param string) (*models.Product, bool) {
	productID, ok := parseID(c, param)
	if !ok {
		return nil, false
	}

	var product models.Product
	err := preloadProduct(h.db.WithContext(c.Request.Context())).First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusNotFound, detailNotFound)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Unable to load product", err)
		return nil, false
	}
	return &product, true
}

// 商品擁有者或管理員才能修改
func (h *Handler) findOwnedProduct(c *gin.Context) (*models.Product, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}

	product, ok := h.findProduct(c, "id")
	if !ok {
		return nil, false
	}

	if product.SellerID != userID && middleware.CurrentRole(c) != models.RoleAdmin {
		respondDetail(c, http.StatusForbidden, detailPermission)
		return nil, false
	}
	return product, true
}

// 更新Redis中的單一商品，失敗只記錄不影響請求
func (h *Handler) cacheProduct(c *gin.Context, product *models.Product) {
	productJSON, err := json.Marshal(newProductResponse(product))
	if err == nil {
		err = h.products.Put(c.Request.Context(), product.ID, productJSON)
	}
	if err != nil {
		h.logger(c).WithError(err).WithField("product_id", product.ID).Warn("Unable to update product cache")
	}
}

func (h *Handler) uncacheProduct(c *gin.Context, productID uint) {
	if err := h.products.Remove(c.Request.Context(), productID); err != nil {
		h.logger(c).WithError(err).WithField("product_id", productID).Warn("Unable to remove product from cache")
	}
}

func (h *Handler) invalidateProductCache(c *gin.Context) {
	if err := h.products.Invalidate(c.Request.Context()); err != nil {
		h.logger(c).WithError(err).Warn("Unable to invalidate product cache")
	}
}

// 查詢商品列表
func (h *Handler) GetProductListHandler(c *gin.Context) {
	ctx := c.Request.Context()

	//嘗試從Redis讀取商品列表，如失敗則從資料庫讀取並儲存至Redis
	members, ok, err := h.products.List(ctx)
	if err != nil {
		h.logger(c).WithError(err).Warn("Unable to read product cache")
	}
	if ok {
		c.JSON(http.StatusOK, members)
		return
	}

	var products []models.Product
	if err := preloadProduct(h.db.WithContext(ctx)).Order("id").Find(&products).Error; err != nil {
		h.internalError(c, "Unable to list products", err)
		return
	}

	productList := newProductListResponse(products)

	productsJSON := make(map[uint][]byte, len(productList))
	for _, product := range productList {
		productJSON, err := json.Marshal(product)
		if err != nil {
			h.logger(c).WithError(err).WithField("product_id", product.ID).Warn("Unable to serialize product")
			continue
		}
		productsJSON[product.ID] = productJSON
	}
	if err := h.products.Rebuild(ctx, productsJSON); err != nil {
		h.logger(c).WithError(err).Warn("Unable to rebuild product cache")
	}

	c.JSON(http.StatusOK, productList)
}

func (h *Handler) GetProductHandler(c *gin.Context) {
	product, ok := h.findProduct(c, "id")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newProductResponse(product))
}

// 查詢自己的商品
func (h *Handler) GetMyProductsHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var products []models.Product
	err := preloadProduct(h.db.WithContext(c.Request.Context())).
		Where("seller_id = ?", userID).
		Order("id").
		Find(&products).Error
	if err != nil {
		h.internalError(c, "Unable to list own products", err)
		return
	}

	c.JSON(http.StatusOK, newProductListResponse(products))
}

// 新增商品，只有賣家可以新增
func (h *Handler) CreateProductHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if middleware.CurrentRole(c) != models.RoleSeller {
		respondDetail(c, http.StatusForbidden, "Only sellers can create products.")
		return
	}

	var productReq struct {
		Name         string           `json:"name" binding:"required,max=50"`
		Description  string           `json:"description" binding:"required,max=500"`
		Price        *decimal.Decimal `json:"price" binding:"required"`
		Quantity     *uint            `json:"quantity" binding:"required"`
		CategoryID   uint             `json:"category_id" binding:"required"`
		ImageProduct string           `json:"imageProduct" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&productReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}
	if productReq.Price.IsNegative() {
		respondDetail(c, http.StatusBadRequest, "Price must not be negative.")
		return
	}

	db := h.db.WithContext(c.Request.Context())

	//檢查分類是否存在
	var category models.Category
	err := db.First(&category, productReq.CategoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusBadRequest, "Invalid category_id.")
		return
	}
	if err != nil {
		h.internalError(c, "Unable to load category", err)
		return
	}

	product := models.Product{
		Name:         productReq.Name,
		Description:  productReq.Description,
		Price:        productReq.Price.Round(2),
		Quantity:     *productReq.Quantity,
		CategoryID:   category.ID,
		ImageProduct: productReq.ImageProduct,
		SellerID:     userID,
	}
	if product.ImageProduct == "" {
		product.ImageProduct = models.DefaultImage
	}
	if err := db.Omit("Category", "Seller").Create(&product).Error; err != nil {
		h.internalError(c, "Unable to create product", err)
		return
	}

	if err := preloadProduct(db).First(&product, product.ID).Error; err != nil {
		h.internalError(c, "Unable to reload product", err)
		return
	}

	h.cacheProduct(c, &product)

	c.JSON(http.StatusCreated, newProductResponse(&product))
}

// 修改商品，只更新有提供的欄位
func (h *Handler) UpdateProductHandler(c *gin.Context) {
	product, ok := h.findOwnedProduct(c)
	if !ok {
		return
	}

	var productReq struct {
		Name         *string          `json:"name" binding:"omitempty,min=1,max=50"`
		Description  *string          `json:"description" binding:"omitempty,max=500"`
		Price        *decimal.Decimal `json:"price"`
		Quantity     *uint            `json:"quantity"`
		CategoryID   *uint            `json:"category_id"`
		ImageProduct *string          `json:"imageProduct" binding:"omitempty,max=255"`
	}
	if err := c.ShouldBindJSON(&productReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	db := h.db.WithContext(c.Request.Context())

	if productReq.CategoryID != nil {
		var category models.Category
		err := db.First(&category, *productReq.CategoryID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondDetail(c, http.StatusBadRequest, "Invalid category_id.")
			return
		}
		if err != nil {
			h.internalError(c, "Unable to load category", err)
			return
		}
		product.CategoryID = category.ID
		product.Category = category
	}
	if productReq.Price != nil {
		if productReq.Price.IsNegative() {
			respondDetail(c, http.StatusBadRequest, "Price must not be negative.")
			return
		}
		product.Price = productReq.Price.Round(2)
	}
	if productReq.Name != nil {
		product.Name = *productReq.Name
	}
	if productReq.Description != nil {
		product.Description = *productReq.Description
	}
	if productReq.Quantity != nil {
		product.Quantity = *productReq.Quantity
	}
	if productReq.ImageProduct != nil {
		product.ImageProduct = *productReq.ImageProduct
	}

	if err := db.Omit("Category", "Seller").Save(product).Error; err != nil {
		h.internalError(c, "Unable to update product", err)
		return
	}

	h.cacheProduct(c, product)

	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) UpdateProductImageHandler(c *gin.Context) {
	product, ok := h.findOwnedProduct(c)
	if !ok {
		return
	}

	var imageReq struct {
		ImageProduct string `json:"imageProduct"`
	}
	if err := c.ShouldBindJSON(&imageReq); err != nil || imageReq.ImageProduct == "" {
		respondDetail(c, http.StatusBadRequest, detailNoImage)
		return
	}

	product.ImageProduct = imageReq.ImageProduct
	if err := h.db.WithContext(c.Request.Context()).Omit("Category", "Seller").Save(product).Error; err != nil {
		h.internalError(c, "Unable to update product image", err)
		return
	}

	h.cacheProduct(c, product)

	c.JSON(http.StatusOK, newProductResponse(product))
}

// 刪除商品
func (h *Handler) DeleteProductHandler(c *gin.Context) {
	product, ok := h.findOwnedProduct(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return deleteProductsWhere(tx, "id = ?", product.ID)
	})
	if err != nil {
		h.internalError(c, "Unable to delete product", err)
		return
	}

	h.uncacheProduct(c, product.ID)

	c.Status(http.StatusNoContent)
}
