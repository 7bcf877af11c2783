package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Marketplace/models"
)

func (h *Handler) respondReviews(c *gin.Context, query *gorm.DB) {
	var reviews []models.Review
	err := preloadUserProduct(query.WithContext(c.Request.Context())).
		Order("id").
		Find(&reviews).Error
	if err != nil {
		h.internalError(c, "Unable to list reviews", err)
		return
	}

	reviewList := make([]reviewResponse, 0, len(reviews))
	for i := range reviews {
		reviewList = append(reviewList, newReviewResponse(&reviews[i]))
	}

	c.JSON(http.StatusOK, reviewList)
}

// 查詢自己的評論，找不到或不屬於自己時回傳404
func (h *Handler) findOwnReview(c *gin.Context) (*models.Review, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	reviewID, ok := parseID(c, "reviewId")
	if !ok {
		return nil, false
	}

	var review models.Review
	err := preloadUserProduct(h.db.WithContext(c.Request.Context())).
		Where("id = ? AND user_id = ?", reviewID, userID).
		First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusNotFound, detailNotFound)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Unable to load review", err)
		return nil, false
	}
	return &review, true
}

// 查詢所有評論
func (h *Handler) GetReviewListHandler(c *gin.Context) {
	h.respondReviews(c, h.db)
}

// 查詢商品的評論
func (h *Handler) GetProductReviewsHandler(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	h.respondReviews(c, h.db.Where("product_id = ?", productID))
}

func (h *Handler) GetMyReviewsHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	h.respondReviews(c, h.db.Where("user_id = ?", userID))
}

func (h *Handler) GetMyProductReviewHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	h.respondReviews(c, h.db.Where("user_id = ? AND product_id = ?", userID, productID))
}

// 新增評論，每位使用者對同一商品只能評論一次
func (h *Handler) AddReviewHandler(c *gin.Context) {
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
	err := db.Model(&models.Review{}).
		Where("user_id = ? AND product_id = ?", userID, product.ID).
		Count(&count).Error
	if err != nil {
		h.internalError(c, "Unable to check review", err)
		return
	}
	if count > 0 {
		respondDetail(c, http.StatusBadRequest, "You have already reviewed this product.")
		return
	}

	var reviewReq struct {
		Rating uint    `json:"rating" binding:"required,min=1,max=5"`
		Review *string `json:"review"`
	}
	if err := c.ShouldBindJSON(&reviewReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	review := models.Review{
		UserID:    userID,
		ProductID: product.ID,
		Rating:    reviewReq.Rating,
		Review:    reviewReq.Review,
	}
	//同時送出的重複請求由唯一索引擋下
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Omit("User", "Product").Create(&review)
	if result.Error != nil {
		h.internalError(c, "Unable to create review", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondDetail(c, http.StatusBadRequest, "You have already reviewed this product.")
		return
	}

	if err := preloadUserProduct(db).First(&review, review.ID).Error; err != nil {
		h.internalError(c, "Unable to reload review", err)
		return
	}

	c.JSON(http.StatusCreated, newReviewResponse(&review))
}

// 修改自己的評論
func (h *Handler) UpdateReviewHandler(c *gin.Context) {
	review, ok := h.findOwnReview(c)
	if !ok {
		return
	}

	var reviewReq struct {
		Rating *uint   `json:"rating" binding:"omitempty,min=1,max=5"`
		Review *string `json:"review"`
	}
	if err := c.ShouldBindJSON(&reviewReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	if reviewReq.Rating != nil {
		review.Rating = *reviewReq.Rating
	}
	if reviewReq.Review != nil {
		review.Review = reviewReq.Review
	}

	if err := h.db.WithContext(c.Request.Context()).Omit("User", "Product").Save(review).Error; err != nil {
		h.internalError(c, "Unable to update review", err)
		return
	}

	c.JSON(http.StatusOK, newReviewResponse(review))
}

func (h *Handler) DeleteReviewHandler(c *gin.Context) {
	review, ok := h.findOwnReview(c)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(review).Error; err != nil {
		h.internalError(c, "Unable to delete review", err)
		return
	}

	c.Status(http.StatusNoContent)
}
