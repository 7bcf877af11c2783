package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 確認資料庫連線正常
func (h *Handler) HealthHandler(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger(c).WithError(err).Error("Database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
