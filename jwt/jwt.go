package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"Marketplace/models"
)

var ErrTokenRevoked = errors.New("token revoked")

// Claims Token內容
type Claims struct {
	UserID uint
	Role   string
}

// Manager 以RS256簽發及驗證Token
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
}

func NewManager(privateKey *rsa.PrivateKey, ttl time.Duration) *Manager {
	return &Manager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		ttl:        ttl,
	}
}

// LoadManager 從PEM檔讀取金鑰
func LoadManager(privateKeyPath, publicKeyPath string, ttl time.Duration) (*Manager, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, err
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	keyBytes, err = os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, err
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Manager{
		privateKey: privateKey,
		publicKey:  publicKey,
		ttl:        ttl,
	}, nil
}

// IssueToken 生成Token並儲存LoginToken
func (m *Manager) IssueToken(db *gorm.DB, user *models.User) (string, error) {
	expiresAt := time.Now().Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"userID": user.ID,
		"role":   user.Role,
		"exp":    expiresAt.Unix(),
		"iat":    time.Now().Unix(),
		"jti":    uuid.NewString(),
	})

	tokenString, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", err
	}

	loginToken := models.LoginToken{
		Token:          tokenString,
		ExpirationTime: expiresAt,
		UserID:         user.ID,
		Role:           user.Role,
	}
	if err := db.Create(&loginToken).Error; err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyToken 驗證簽章、期限，並確認Token尚未登出
func (m *Manager) VerifyToken(db *gorm.DB, tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return m.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}

	if !token.Valid {
		return Claims{}, jwt.ErrTokenSignatureInvalid
	}

	//從資料庫檢查Token是否刪除
	var loginToken models.LoginToken
	err = db.Where("token = ?", tokenString).First(&loginToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Claims{}, ErrTokenRevoked
	}
	if err != nil {
		return Claims{}, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	userID, ok := mapClaims["userID"].(float64)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	role, _ := mapClaims["role"].(string)

	return Claims{UserID: uint(userID), Role: role}, nil
}

// RevokeToken 刪除單一Token，回傳是否有刪除
func RevokeToken(db *gorm.DB, tokenString string) (bool, error) {
	result := db.Unscoped().Where("token = ?", tokenString).Delete(&models.LoginToken{})
	return result.RowsAffected > 0, result.Error
}

// RevokeUserTokens 刪除使用者所有Token
func RevokeUserTokens(db *gorm.DB, userID uint) error {
	return db.Unscoped().Where("user_id = ?", userID).Delete(&models.LoginToken{}).Error
}
