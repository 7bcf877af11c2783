package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Marketplace/models"
)

func (h *Handler) findCategory(c *gin.Context) (*models.Category, bool) {
	categoryID, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	var category models.Category
	err := h.db.WithContext(c.Request.Context()).First(&category, categoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusNotFound, detailNotFound)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Unable to load category", err)
		return nil, false
	}
	return &category, true
}

// 檢查分類名稱是否重複
func isCategoryNameTaken(db *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Category{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	return count > 0, err
}

// 查詢分類列表
func (h *Handler) GetCategoryListHandler(c *gin.Context) {
	categories := []models.Category{}
	if err := h.db.WithContext(c.Request.Context()).Order("id").Find(&categories).Error; err != nil {
		h.internalError(c, "Unable to list categories", err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *Handler) GetCategoryHandler(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, category)
}

// 新增分類
func (h *Handler) CreateCategoryHandler(c *gin.Context) {
	var categoryReq struct {
		Name          string `json:"name" binding:"required,max=50"`
		Description   string `json:"description" binding:"required,max=500"`
		ImageCategory string `json:"imageCategory" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&categoryReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	db := h.db.WithContext(c.Request.Context())

	taken, err := isCategoryNameTaken(db, categoryReq.Name, 0)
	if err != nil {
		h.internalError(c, "Unable to check category name", err)
		return
	}
	if taken {
		respondDetail(c, http.StatusBadRequest, "Category with this name already exists.")
		return
	}

	category := models.Category{
		Name:          categoryReq.Name,
		Description:   categoryReq.Description,
		ImageCategory: categoryReq.ImageCategory,
	}
	if category.ImageCategory == "" {
		category.ImageCategory = models.DefaultImage
	}
	if err := db.Create(&category).Error; err != nil {
		h.internalError(c, "Unable to create category", err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

// 修改分類，只更新有提供的欄位
func (h *Handler) UpdateCategoryHandler(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	var categoryReq struct {
		Name          *string `json:"name" binding:"omitempty,min=1,max=50"`
		Description   *string `json:"description" binding:"omitempty,max=500"`
		ImageCategory *string `json:"imageCategory" binding:"omitempty,max=255"`
	}
	if err := c.ShouldBindJSON(&categoryReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	db := h.db.WithContext(c.Request.Context())

	if categoryReq.Name != nil {
		taken, err := isCategoryNameTaken(db, *categoryReq.Name, category.ID)
		if err != nil {
			h.internalError(c, "Unable to check category name", err)
			return
		}
		if taken {
			respondDetail(c, http.StatusBadRequest, "Category with this name already exists.")
			return
		}
		category.Name = *categoryReq.Name
	}
	if categoryReq.Description != nil {
		category.Description = *categoryReq.Description
	}
	if categoryReq.ImageCategory != nil {
		category.ImageCategory = *categoryReq.ImageCategory
	}

	if err := db.Save(category).Error; err != nil {
		h.internalError(c, "Unable to update category", err)
		return
	}

	//分類資料內嵌於快取的商品中
	h.invalidateProductCache(c)

	c.JSON(http.StatusOK, category)
}

func (h *Handler) UpdateCategoryImageHandler(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	var imageReq struct {
		ImageCategory string `json:"imageCategory"`
	}
	if err := c.ShouldBindJSON(&imageReq); err != nil || imageReq.ImageCategory == "" {
		respondDetail(c, http.StatusBadRequest, detailNoImage)
		return
	}

	category.ImageCategory = imageReq.ImageCategory
	if err := h.db.WithContext(c.Request.Context()).Save(category).Error; err != nil {
		h.internalError(c, "Unable to update category image", err)
		return
	}

	h.invalidateProductCache(c)

	c.JSON(http.StatusOK, category)
}

// 刪除分類，分類下的商品一併刪除
func (h *Handler) DeleteCategoryHandler(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := deleteProductsWhere(tx, "category_id = ?", category.ID); err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
	if err != nil {
		h.internalError(c, "Unable to delete category", err)
		return
	}

	h.invalidateProductCache(c)

	c.Status(http.StatusNoContent)
}

// 查詢分類下的商品
func (h *Handler) GetCategoryProductsHandler(c *gin.Context) {
	category, ok := h.findCategory(c)
	if !ok {
		return
	}

	var products []models.Product
	err := preloadProduct(h.db.WithContext(c.Request.Context())).
		Where("category_id = ?", category.ID).
		Order("id").
		Find(&products).Error
	if err != nil {
		h.internalError(c, "Unable to list category products", err)
		return
	}

	c.JSON(http.StatusOK, newProductListResponse(products))
}
