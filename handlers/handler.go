package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Marketplace/cache"
	"Marketplace/jwt"
	"Marketplace/middleware"
	"Marketplace/models"
	"Marketplace/services"
)

const (
	detailNotFound       = "Not found."
	detailInternalError  = "Internal server error."
	detailNotAuthorized  = "Authentication credentials were not provided."
	detailPermission     = "Permission denied."
	detailNoImage        = "No image provided."
	detailProductMissing = "Product not found."
)

// Handler 所有API共用的依賴
type Handler struct {
	db       *gorm.DB
	products *cache.ProductCache
	orders   *services.OrderService
	tokens   *jwt.Manager
	log      *logrus.Logger
}

func NewHandler(db *gorm.DB, products *cache.ProductCache, orders *services.OrderService, tokens *jwt.Manager, log *logrus.Logger) *Handler {
	return &Handler{
		db:       db,
		products: products,
		orders:   orders,
		tokens:   tokens,
		log:      log,
	}
}

func respondDetail(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{
		"detail": detail,
	})
}

// internalError 記錄錯誤並回傳500，不將內部錯誤訊息回傳給使用者
func (h *Handler) internalError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	h.logger(c).WithError(err).Error(message)
	respondDetail(c, http.StatusInternalServerError, detailInternalError)
}

func (h *Handler) logger(c *gin.Context) *logrus.Entry {
	return h.log.WithField("request_id", middleware.RequestID(c))
}

// 解析路徑中的ID，格式錯誤視同查無資料
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondDetail(c, http.StatusNotFound, detailNotFound)
		return 0, false
	}
	return uint(id), true
}

// currentUser 取得目前登入的使用者資料
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondDetail(c, http.StatusUnauthorized, detailNotAuthorized)
		return nil, false
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusUnauthorized, detailNotAuthorized)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Unable to load current user", err)
		return nil, false
	}
	return &user, true
}

// currentUserID 只需要ID時不查詢資料庫
func currentUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondDetail(c, http.StatusUnauthorized, detailNotAuthorized)
	}
	return userID, ok
}

// 訂單服務錯誤對應的HTTP狀態碼與訊息
var orderErrors = []struct {
	err    error
	status int
	detail string
}{
	{services.ErrProductsRequired, http.StatusBadRequest, "Products list is required and cannot be empty."},
	{services.ErrSellerRequired, http.StatusBadRequest, "Seller is required."},
	{services.ErrSellerNotFound, http.StatusNotFound, "Seller not found."},
	{services.ErrTotalPriceRequired, http.StatusBadRequest, "Total price is required."},
	{services.ErrTotalPriceNotPositive, http.StatusBadRequest, "Total price must be positive."},
	{services.ErrTotalPriceTooLarge, http.StatusBadRequest, "Total price must not exceed 99999999.99."},
	{services.ErrInvalidPaymentMethod, http.StatusBadRequest, "Invalid payment method."},
	{services.ErrNoValidProducts, http.StatusBadRequest, "No valid products to order."},
	{services.ErrInvalidStatus, http.StatusBadRequest, "Invalid status."},
	{services.ErrOrderNotFound, http.StatusNotFound, detailNotFound},
}

func (h *Handler) orderError(c *gin.Context, err error) {
	for _, e := range orderErrors {
		if errors.Is(err, e.err) {
			respondDetail(c, e.status, e.detail)
			return
		}
	}
	h.internalError(c, "Order operation failed", err)
}
