package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"Marketplace/jwt"
	"Marketplace/models"
)

const detailAdminNotFound = "Admin user not found."

// 管理員新增或修改使用者時可提供的欄位
type adminUserRequest struct {
	Username         *string           `json:"username"`
	Email            *string           `json:"email"`
	Password         *string           `json:"password"`
	FirstName        *string           `json:"first_name"`
	LastName         *string           `json:"last_name"`
	ProfileImage     *string           `json:"profileImage"`
	PhoneNumber      *string           `json:"phoneNumber"`
	Address          map[string]string `json:"address"`
	StoreName        *string           `json:"storeName"`
	StoreDescription *string           `json:"storeDescription"`
	Permissions      []string          `json:"permissions"`
}

// apply 將請求中有提供的欄位寫入user，回傳錯誤訊息
func (req *adminUserRequest) apply(db *gorm.DB, user *models.User) (string, error) {
	if req.Username != nil {
		if !ValidateUsername(*req.Username) {
			return "Enter a valid username.", nil
		}
		taken, err := isUserFieldTaken(db, "username", *req.Username, user.ID)
		if err != nil || taken {
			return "A user with that username already exists.", err
		}
		user.Username = *req.Username
	}

	if req.Email != nil {
		if !ValidateEmail(*req.Email) {
			return "Enter a valid email address.", nil
		}
		taken, err := isUserFieldTaken(db, "email", *req.Email, user.ID)
		if err != nil || taken {
			return "Email already in use.", err
		}
		user.Email = *req.Email
	}

	if req.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		now := time.Now()
		user.Password = string(hashedPassword)
		user.PasswordChangedAt = &now
	}

	if req.PhoneNumber != nil {
		if *req.PhoneNumber == "" {
			user.PhoneNumber = nil
		} else {
			taken, err := isUserFieldTaken(db, "phone_number", *req.PhoneNumber, user.ID)
			if err != nil || taken {
				return "Phone number already in use.", err
			}
			user.PhoneNumber = req.PhoneNumber
		}
	}

	if req.StoreName != nil {
		if *req.StoreName == "" {
			user.StoreName = nil
		} else {
			taken, err := isUserFieldTaken(db, "store_name", *req.StoreName, user.ID)
			if err != nil || taken {
				return "Store name already in use.", err
			}
			user.StoreName = req.StoreName
		}
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.ProfileImage != nil {
		user.ProfileImage = *req.ProfileImage
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	if req.StoreDescription != nil {
		user.StoreDescription = req.StoreDescription
	}
	if req.Permissions != nil {
		user.Permissions = req.Permissions
	}
	return "", nil
}

// 查詢管理員帳號，找不到時回傳404
func (h *Handler) findAdmin(c *gin.Context) (*models.User, bool) {
	userID, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("role = ?", models.RoleAdmin).
		First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusNotFound, detailAdminNotFound)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Unable to load admin user", err)
		return nil, false
	}
	return &user, true
}

// 管理員變更任意使用者的密碼
func (h *Handler) AdminChangePasswordHandler(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	db := h.db.WithContext(c.Request.Context())

	var user models.User
	err := db.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondDetail(c, http.StatusNotFound, "User not found.")
		return
	}
	if err != nil {
		h.internalError(c, "Unable to load user", err)
		return
	}

	var passwordReq struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&passwordReq); err != nil || passwordReq.Password == "" {
		respondDetail(c, http.StatusBadRequest, "No password provided.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(passwordReq.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(c, "Unable to hash password", err)
		return
	}

	//變更密碼後撤銷該使用者所有Token
	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&user).Updates(map[string]interface{}{
			"password":            string(hashedPassword),
			"password_changed_at": time.Now(),
		}).Error
		if err != nil {
			return err
		}
		return jwt.RevokeUserTokens(tx, user.ID)
	})
	if err != nil {
		h.internalError(c, "Unable to change password", err)
		return
	}

	h.logger(c).WithField("user_id", user.ID).Info("Password changed by admin")
	respondDetail(c, http.StatusOK, "Password changed.")
}

// 新增管理員帳號
func (h *Handler) AdminCreateUserHandler(c *gin.Context) {
	var userReq adminUserRequest
	if err := c.ShouldBindJSON(&userReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}
	if userReq.Username == nil || userReq.Email == nil || userReq.Password == nil {
		respondDetail(c, http.StatusBadRequest, "Username, email and password are required.")
		return
	}

	db := h.db.WithContext(c.Request.Context())

	newUser := models.User{
		Role:         models.RoleAdmin,
		ProfileImage: models.DefaultImage,
		IsActive:     true,
	}
	detail, err := userReq.apply(db, &newUser)
	if err != nil {
		h.internalError(c, "Unable to prepare admin user", err)
		return
	}
	if detail != "" {
		respondDetail(c, http.StatusBadRequest, detail)
		return
	}

	if err := db.Create(&newUser).Error; err != nil {
		h.internalError(c, "Unable to create admin user", err)
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(&newUser))
}

func (h *Handler) AdminGetUserHandler(c *gin.Context) {
	user, ok := h.findAdmin(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *Handler) AdminDeleteUserHandler(c *gin.Context) {
	user, ok := h.findAdmin(c)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(user).Error; err != nil {
		h.internalError(c, "Unable to delete admin user", err)
		return
	}

	respondDetail(c, http.StatusOK, "Admin user deleted.")
}

// 修改管理員帳號，PUT需提供username與email，PATCH只修改有提供的欄位
func (h *Handler) AdminUpdateUserHandler(c *gin.Context) {
	user, ok := h.findAdmin(c)
	if !ok {
		return
	}

	var userReq adminUserRequest
	if err := c.ShouldBindJSON(&userReq); err != nil {
		respondDetail(c, http.StatusBadRequest, err.Error())
		return
	}
	if c.Request.Method == http.MethodPut && (userReq.Username == nil || userReq.Email == nil) {
		respondDetail(c, http.StatusBadRequest, "Username and email are required.")
		return
	}

	db := h.db.WithContext(c.Request.Context())

	detail, err := userReq.apply(db, user)
	if err != nil {
		h.internalError(c, "Unable to prepare admin user", err)
		return
	}
	if detail != "" {
		respondDetail(c, http.StatusBadRequest, detail)
		return
	}

	if err := db.Save(user).Error; err != nil {
		h.internalError(c, "Unable to update admin user", err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}
