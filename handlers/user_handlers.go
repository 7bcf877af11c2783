package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Marketplace/jwt"
	"Marketplace/middleware"
	"Marketplace/models"
)

const maxImageSize = 2 * 1024 * 1024

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

// 檢查使用者名稱是否合法
func ValidateUsername(username string) bool {
	if len(username) == 0 || len(username) > 150 {
		return false
	}
	return usernamePattern.MatchString(username)
}

// 檢查信箱是否合法
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// 檢查密碼是否合法
func ValidatePassword(password string) bool {
	if len(password) < 8 || len(password) > 50 {
		return false
	}

	var (
		isUpper   = false
		isLower   = false
		isNumber  = false
		isSpecial = false
		isSpace   = false
	)

	for _, s := range password {
		switch {
		case unicode.IsSpace(s):
			isSpace = true
		case unicode.IsUpper(s):
			isUpper = true
		case unicode.IsLower(s):
			isLower = true
		case unicode.IsDigit(s):
			isNumber = true
		case unicode.IsPunct(s) || unicode.IsSymbol(s):
			isSpecial = true
		default:
		}
	}

	return isUpper && isLower && isNumber && isSpecial && !isSpace
}

// 檢查欄位值是否已被其他使用者使用，excludeID為0代表不排除任何使用者
func isUserFieldTaken(db *gorm.DB, column, value string, excludeID uint) (bool, error) {
	var count int64
	query := db.Model(&models.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// 檢查圖片是否為jpg、jpeg、png，data URI需小於2MB
func validateImageReference(image string) string {
	allowExtensions := []string{"jpg", "jpeg", "png"}

	if strings.HasPrefix(image, "data:image/") {
		header, data, found := strings.Cut(image, ";base64,")
		if !found {
			return "Invalid image data."
		}
		fileExt := header[strings.LastIndex(header, "/")+1:]
		if !containsString(allowExtensions, fileExt) {
			return "Invalid image type. Only jpg, jpeg, png allowed."
		}
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return "Invalid image data."
		}
		if len(decoded) > maxImageSize {
			return "Image size exceeds 2MB."
		}
		return ""
	}

	lower := strings.ToLower(image)
	for _, allowExt := range allowExtensions {
		if strings.HasSuffix(lower, "."+allowExt) {
			return ""
		}
	}
	return "Invalid image type. Only jpg, jpeg, png allowed."
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// 登入並取得Token
func (h *Handler) LoginHandler(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil || loginReq.Username == "" || loginReq.Password == "" {
		respondDetail(c, http.StatusBadRequest, "Username and password are required.")
		return
	}

	ctx := c.Request.Context()

	//檢查是否有此帳號
	var user models.User
	err := h.db.WithContext(ctx).First(&user, "username = ?", loginReq.Username).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.internalError(c, "Unable to load user for login", err)
		return
	}

	//檢查密碼是否正確
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginReq.Password)) != nil {
		respondDetail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.IsActive {
		respondDetail(c, http.StatusForbidden, "Account is deactivated.")
		return
	}

	token, err := h.tokens.IssueToken(h.db.WithContext(ctx), &user)
	if err != nil {
		h.internalError(c, "Unable to issue token", err)
		return
	}

	h.logger(c).WithField("user_id", user.ID).Info("User logged in")

	//成功登入 回傳Token和使用者資料
	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    newSessionUserResponse(&user),
	})
}

func (h *Handler) LogoutHandler(c *gin.Context) {
	token := middleware.CurrentToken(c)

	//刪除此LoginToken，已登出也視為成功
	if _, err := jwt.RevokeToken(h.db.WithContext(c.Request.Context()), token); err != nil {
		h.internalError(c, "Unable to revoke token", err)
		return
	}

	c.Header("Authorization", "")
	c.JSON(http.StatusOK, gin.H{
		"message": "Logout successful",
	})
}

// 查詢所有已註冊的使用者
func (h *Handler) GetUserListHandler(c *gin.Context) {
	var users []models.User
	if err := h.db.WithContext(c.Request.Context()).Order("id").Find(&users).Error; err != nil {
		h.internalError(c, "Unable to list users", err)
		return
	}

	userList := make([]userResponse, 0, len(users))
	for i := range users {
		userList = append(userList, newUserResponse(&users[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"users": userList,
	})
}

// 註冊使用者帳戶
func (h *Handler) RegisterHandler(c *gin.Context) {
	var registerReq struct {
		Username     string  `json:"username" binding:"required"`
		Email        string  `json:"email" binding:"required"`
		Password     string  `json:"password" binding:"required"`
		Confirmation *string `json:"confirmation"`
		FirstName    string  `json:"first_name"`
		LastName     string  `json:"last_name"`
		Role         string  `json:"role" binding:"required,oneof=buyer seller"`
	}
	if err := c.ShouldBindJSON(&registerReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	//有提供確認密碼時才檢查
	if registerReq.Confirmation != nil && *registerReq.Confirmation != registerReq.Password {
		respondDetail(c, http.StatusBadRequest, "Passwords must match.")
		return
	}

	if !ValidateUsername(registerReq.Username) {
		respondDetail(c, http.StatusBadRequest, "Enter a valid username.")
		return
	}
	if !ValidateEmail(registerReq.Email) {
		respondDetail(c, http.StatusBadRequest, "Enter a valid email address.")
		return
	}
	if !ValidatePassword(registerReq.Password) {
		respondDetail(c, http.StatusBadRequest, "Password must be 8-50 characters with upper and lower case letters, a number and a symbol.")
		return
	}

	db := h.db.WithContext(c.Request.Context())

	taken, err := isUserFieldTaken(db, "username", registerReq.Username, 0)
	if err != nil {
		h.internalError(c, "Unable to check username", err)
		return
	}
	if taken {
		respondDetail(c, http.StatusBadRequest, "A user with that username already exists.")
		return
	}

	taken, err = isUserFieldTaken(db, "email", registerReq.Email, 0)
	if err != nil {
		h.internalError(c, "Unable to check email", err)
		return
	}
	if taken {
		respondDetail(c, http.StatusBadRequest, "Email already in use.")
		return
	}

	//將密碼Hash
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(registerReq.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(c, "Unable to hash password", err)
		return
	}

	newUser := models.User{
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		Password:     string(hashedPassword),
		FirstName:    registerReq.FirstName,
		LastName:     registerReq.LastName,
		Role:         registerReq.Role,
		ProfileImage: models.DefaultImage,
		IsActive:     true,
	}
	if err := db.Create(&newUser).Error; err != nil {
		h.internalError(c, "Unable to create user", err)
		return
	}

	token, err := h.tokens.IssueToken(db, &newUser)
	if err != nil {
		h.internalError(c, "Unable to issue token", err)
		return
	}

	h.logger(c).WithFields(logrus.Fields{
		"user_id": newUser.ID,
		"role":    newUser.Role,
	}).Info("User registered")

	//成功註冊
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"token":   token,
		"user":    newSessionUserResponse(&newUser),
	})
}

// 查詢使用者資料
func (h *Handler) GetUserProfileHandler(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// 變更使用者資料
func (h *Handler) UpdateUserProfileHandler(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var profileReq struct {
		FirstName        *string           `json:"first_name"`
		LastName         *string           `json:"last_name"`
		Email            *string           `json:"email"`
		PhoneNumber      *string           `json:"phoneNumber"`
		Address          map[string]string `json:"address"`
		StoreName        *string           `json:"storeName"`
		StoreDescription *string           `json:"storeDescription"`
	}
	if err := c.ShouldBindJSON(&profileReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	db := h.db.WithContext(c.Request.Context())

	//如果使用者有提供資料則覆蓋(包含空字串)
	if profileReq.FirstName != nil {
		user.FirstName = *profileReq.FirstName
	}
	if profileReq.LastName != nil {
		user.LastName = *profileReq.LastName
	}

	if profileReq.Email != nil {
		if !ValidateEmail(*profileReq.Email) {
			respondDetail(c, http.StatusBadRequest, "Enter a valid email address.")
			return
		}
		taken, err := isUserFieldTaken(db, "email", *profileReq.Email, user.ID)
		if err != nil {
			h.internalError(c, "Unable to check email", err)
			return
		}
		if taken {
			respondDetail(c, http.StatusBadRequest, "Email already in use.")
			return
		}
		user.Email = *profileReq.Email
	}

	if profileReq.PhoneNumber != nil {
		if *profileReq.PhoneNumber == "" {
			user.PhoneNumber = nil
		} else {
			taken, err := isUserFieldTaken(db, "phone_number", *profileReq.PhoneNumber, user.ID)
			if err != nil {
				h.internalError(c, "Unable to check phone number", err)
				return
			}
			if taken {
				respondDetail(c, http.StatusBadRequest, "Phone number already in use.")
				return
			}
			user.PhoneNumber = profileReq.PhoneNumber
		}
	}

	if profileReq.Address != nil {
		user.Address = profileReq.Address
	}

	//商店資料只有賣家可以修改
	if user.Role == models.RoleSeller {
		if profileReq.StoreName != nil {
			if *profileReq.StoreName == "" {
				user.StoreName = nil
			} else {
				taken, err := isUserFieldTaken(db, "store_name", *profileReq.StoreName, user.ID)
				if err != nil {
					h.internalError(c, "Unable to check store name", err)
					return
				}
				if taken {
					respondDetail(c, http.StatusBadRequest, "Store name already in use.")
					return
				}
				user.StoreName = profileReq.StoreName
			}
		}
		if profileReq.StoreDescription != nil {
			user.StoreDescription = profileReq.StoreDescription
		}
	}

	if err := db.Save(user).Error; err != nil {
		h.internalError(c, "Unable to update profile", err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// 驗證帳號
func (h *Handler) ActivateAccountHandler(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).
		Model(user).
		Update("is_verified", true).Error
	if err != nil {
		h.internalError(c, "Unable to activate account", err)
		return
	}

	respondDetail(c, http.StatusOK, "Account activated.")
}

// 更新大頭貼，只儲存圖片參照
func (h *Handler) UpdateProfileImageHandler(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var imageReq struct {
		ProfileImage string `json:"profileImage"`
	}
	if err := c.ShouldBindJSON(&imageReq); err != nil || imageReq.ProfileImage == "" {
		respondDetail(c, http.StatusBadRequest, detailNoImage)
		return
	}

	if detail := validateImageReference(imageReq.ProfileImage); detail != "" {
		respondDetail(c, http.StatusBadRequest, detail)
		return
	}

	err := h.db.WithContext(c.Request.Context()).
		Model(user).
		Update("profile_image", imageReq.ProfileImage).Error
	if err != nil {
		h.internalError(c, "Unable to update profile image", err)
		return
	}
	user.ProfileImage = imageReq.ProfileImage

	c.JSON(http.StatusOK, newUserResponse(user))
}

// 停用帳號並撤銷所有Token
func (h *Handler) DeactivateAccountHandler(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("is_active", false).Error; err != nil {
			return err
		}
		return jwt.RevokeUserTokens(tx, user.ID)
	})
	if err != nil {
		h.internalError(c, "Unable to deactivate account", err)
		return
	}

	h.logger(c).WithField("user_id", user.ID).Info("User deactivated")
	respondDetail(c, http.StatusOK, "Account deactivated.")
}
