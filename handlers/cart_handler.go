package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Marketplace/models"
)

// 購物車與收藏清單序列化需要的關聯
func preloadUserProduct(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Product").
		Preload("Product.Category").
		Preload("Product.Seller")
}

// 加入商品至購物車，已在購物車中則累加數量
func (h *Handler) AddToCartHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	product, ok := h.findProductWithDetail(c, "productId", detailProductMissing)
	if !ok {
		return
	}

	var cartReq struct {
		Quantity *int `json:"quantity"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&cartReq); err != nil {
			respondDetail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	quantity := 1
	if cartReq.Quantity != nil {
		quantity = *cartReq.Quantity
	}
	if quantity <= 0 {
		respondDetail(c, http.StatusBadRequest, "Quantity must be a positive integer.")
		return
	}

	db := h.db.WithContext(c.Request.Context())

	cartItem := models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  uint(quantity),
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", quantity),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Omit("User", "Product").Create(&cartItem).Error
	if err != nil {
		h.internalError(c, "Unable to add product to cart", err)
		return
	}

	//已存在時寫入的ID不可靠，依使用者與商品重新查詢
	var saved models.CartItem
	err = preloadUserProduct(db).
		Where("user_id = ? AND product_id = ?", userID, product.ID).
		First(&saved).Error
	if err != nil {
		h.internalError(c, "Unable to reload cart item", err)
		return
	}

	c.JSON(http.StatusCreated, newCartItemResponse(&saved))
}

// 查詢購物車
func (h *Handler) GetCartHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var cartItems []models.CartItem
	err := preloadUserProduct(h.db.WithContext(c.Request.Context())).
		Where("user_id = ?", userID).
		Order("id").
		Find(&cartItems).Error
	if err != nil {
		h.internalError(c, "Unable to list cart", err)
		return
	}

	cartList := make([]cartItemResponse, 0, len(cartItems))
	for i := range cartItems {
		cartList = append(cartList, newCartItemResponse(&cartItems[i]))
	}

	c.JSON(http.StatusOK, cartList)
}

// 清空購物車
func (h *Handler) ClearCartHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
	if err != nil {
		h.internalError(c, "Unable to clear cart", err)
		return
	}

	respondDetail(c, http.StatusOK, "Cart cleared.")
}

// 從購物車移除商品
func (h *Handler) RemoveFromCartHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		h.internalError(c, "Unable to remove product from cart", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondDetail(c, http.StatusNotFound, "Item not found in cart.")
		return
	}

	c.Status(http.StatusNoContent)
}

// 查詢商品，找不到時回傳指定訊息
func (h *Handler) findProductWithDetail(c *gin.Context, param, detail string) (*models.Product, bool) {
	productID, ok := parseID(c, param)
	if !ok {
		return nil, false
	}

	var product models.Product
	err := h.db.WithContext(c.Request.Context()).First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusNotFound, detail)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Unable to load product", err)
		return nil, false
	}
	return &product, true
}
