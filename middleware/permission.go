package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Marketplace/models"
)

// RequireRoles 檢查使用者角色，不符合則回傳403
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"detail": "You do not have permission to perform this action.",
		})
	}
}

// 檢查是否有admin權限，沒有則中止請求
func CheckAdminPermissionMiddleware() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin)
}
