package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"Marketplace/models"
)

// 加入收藏清單，同一商品只能收藏一次
func (h *Handler) AddToWishlistHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	product, ok := h.findProductWithDetail(c, "productId", detailProductMissing)
	if !ok {
		return
	}

	db := h.db.WithContext(c.Request.Context())

	var count int64
	err := db.Model(&models.WishlistItem{}).
		Where("user_id = ? AND product_id = ?", userID, product.ID).
		Count(&count).Error
	if err != nil {
		h.internalError(c, "Unable to check wishlist", err)
		return
	}
	if count > 0 {
		respondDetail(c, http.StatusBadRequest, "Product already in wishlist.")
		return
	}

	wishlistItem := models.WishlistItem{
		UserID:    userID,
		ProductID: product.ID,
	}
	//同時送出的重複請求由唯一索引擋下
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Omit("User", "Product").Create(&wishlistItem)
	if result.Error != nil {
		h.internalError(c, "Unable to add product to wishlist", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondDetail(c, http.StatusBadRequest, "Product already in wishlist.")
		return
	}

	if err := preloadUserProduct(db).First(&wishlistItem, wishlistItem.ID).Error; err != nil {
		h.internalError(c, "Unable to reload wishlist item", err)
		return
	}

	c.JSON(http.StatusCreated, newWishlistItemResponse(&wishlistItem))
}

func (h *Handler) RemoveFromWishlistHandler(c *gin.Context) {
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
		Delete(&models.WishlistItem{})
	if result.Error != nil {
		h.internalError(c, "Unable to remove product from wishlist", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondDetail(c, http.StatusNotFound, "Product not in wishlist.")
		return
	}

	c.Status(http.StatusNoContent)
}

// 查詢收藏清單
func (h *Handler) GetWishlistHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var wishlistItems []models.WishlistItem
	err := preloadUserProduct(h.db.WithContext(c.Request.Context())).
		Where("user_id = ?", userID).
		Order("id").
		Find(&wishlistItems).Error
	if err != nil {
		h.internalError(c, "Unable to list wishlist", err)
		return
	}

	wishlist := make([]wishlistItemResponse, 0, len(wishlistItems))
	for i := range wishlistItems {
		wishlist = append(wishlist, newWishlistItemResponse(&wishlistItems[i]))
	}

	c.JSON(http.StatusOK, wishlist)
}
