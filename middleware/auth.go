package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Marketplace/jwt"
)

const (
	ContextToken  = "Token"
	ContextUserID = "UserID"
	ContextRole   = "Role"
)

// AuthMiddleware 驗證Bearer Token，成功則將使用者資訊放入Context
//
// Token不存在或不合法時不中止請求，由CheckLoginMiddleware決定是否需要登入。
func AuthMiddleware(db *gorm.DB, tokens *jwt.Manager, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if token == "" || token == authHeader {
			c.Next()
			return
		}

		claims, err := tokens.VerifyToken(db.WithContext(c.Request.Context()), token)
		if err != nil {
			log.WithField("request_id", RequestID(c)).Debugf("Unable to verify token: %v", err)
			c.Next()
			return
		}

		c.Set(ContextToken, token)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// CurrentUserID 取得已登入的使用者ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}

func CurrentRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(ContextToken)
}
