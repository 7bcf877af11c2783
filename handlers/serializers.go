package handlers

import (
	"strings"
	"time"

	"Marketplace/models"
	"Marketplace/services"
)

type userResponse struct {
	ID               uint              `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	ProfileImage     string            `json:"profileImage"`
	PhoneNumber      *string           `json:"phoneNumber"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	Address          map[string]string `json:"address"`
	Role             string            `json:"role"`
	IsVerified       bool              `json:"isVerified"`
	IsActive         bool              `json:"IsActive"`
	StoreName        *string           `json:"storeName"`
	StoreDescription *string           `json:"storeDescription"`
	Rating           string            `json:"rating"`
	Permissions      []string          `json:"permissions"`
}

func newUserResponse(user *models.User) userResponse {
	permissions := user.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	return userResponse{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		ProfileImage:     user.ProfileImage,
		PhoneNumber:      user.PhoneNumber,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Address:          user.Address,
		Role:             user.Role,
		IsVerified:       user.IsVerified,
		IsActive:         user.IsActive,
		StoreName:        user.StoreName,
		StoreDescription: user.StoreDescription,
		Rating:           user.Rating.StringFixed(1),
		Permissions:      permissions,
	}
}

// 登入與註冊時回傳的精簡使用者資料
type sessionUserResponse struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	IsVerified bool   `json:"isVerified"`
	IsActive   bool   `json:"IsActive"`
}

func newSessionUserResponse(user *models.User) sessionUserResponse {
	return sessionUserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		IsActive:   user.IsActive,
	}
}

type productResponse struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        string          `json:"price"`
	Quantity     uint            `json:"quantity"`
	Category     models.Category `json:"category"`
	ImageProduct string          `json:"imageProduct"`
	Seller       string          `json:"seller"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// newProductResponse 需預先載入Category與Seller
func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:           product.ID,
		Name:         product.Name,
		Description:  product.Description,
		Price:        product.Price.StringFixed(2),
		Quantity:     product.Quantity,
		Category:     product.Category,
		ImageProduct: product.ImageProduct,
		Seller:       product.Seller.Username,
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}
}

func newProductListResponse(products []models.Product) []productResponse {
	list := make([]productResponse, 0, len(products))
	for i := range products {
		list = append(list, newProductResponse(&products[i]))
	}
	return list
}

type cartItemResponse struct {
	ID        uint            `json:"id"`
	User      string          `json:"user"`
	Product   productResponse `json:"product"`
	Quantity  uint            `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func newCartItemResponse(item *models.CartItem) cartItemResponse {
	return cartItemResponse{
		ID:        item.ID,
		User:      item.User.Username,
		Product:   newProductResponse(&item.Product),
		Quantity:  item.Quantity,
		AddedAt:   item.AddedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

type wishlistItemResponse struct {
	ID      uint            `json:"id"`
	User    string          `json:"user"`
	Product productResponse `json:"product"`
	AddedAt time.Time       `json:"added_at"`
}

func newWishlistItemResponse(item *models.WishlistItem) wishlistItemResponse {
	return wishlistItemResponse{
		ID:      item.ID,
		User:    item.User.Username,
		Product: newProductResponse(&item.Product),
		AddedAt: item.AddedAt,
	}
}

type reviewResponse struct {
	ID        uint            `json:"id"`
	User      string          `json:"user"`
	UserName  string          `json:"user_name"`
	Product   productResponse `json:"product"`
	Rating    uint            `json:"rating"`
	Review    *string         `json:"review"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func newReviewResponse(review *models.Review) reviewResponse {
	//有姓名時顯示全名，否則顯示帳號
	userName := strings.TrimSpace(review.User.FirstName + " " + review.User.LastName)
	if userName == "" {
		userName = review.User.Username
	}

	return reviewResponse{
		ID:        review.ID,
		User:      review.User.Username,
		UserName:  userName,
		Product:   newProductResponse(&review.Product),
		Rating:    review.Rating,
		Review:    review.Review,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}

type orderProductResponse struct {
	ID       uint            `json:"id"`
	Product  productResponse `json:"product"`
	Quantity uint            `json:"quantity"`
}

type orderResponse struct {
	ID            uint                   `json:"id"`
	User          string                 `json:"user"`
	Seller        string                 `json:"seller"`
	TotalPrice    string                 `json:"totalPrice"`
	PaymentMethod models.PaymentMethod   `json:"paymentMethod"`
	Status        models.OrderStatus     `json:"status"`
	OrderProducts []orderProductResponse `json:"order_products"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderProductResponse, 0, len(order.OrderProducts))
	for i := range order.OrderProducts {
		item := &order.OrderProducts[i]
		items = append(items, orderProductResponse{
			ID:       item.ID,
			Product:  newProductResponse(&item.Product),
			Quantity: item.Quantity,
		})
	}

	return orderResponse{
		ID:            order.ID,
		User:          order.User.Username,
		Seller:        order.Seller.Username,
		TotalPrice:    order.TotalPrice.StringFixed(2),
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		OrderProducts: items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func newOrderListResponse(orders []models.Order) []orderResponse {
	list := make([]orderResponse, 0, len(orders))
	for i := range orders {
		list = append(list, newOrderResponse(&orders[i]))
	}
	return list
}

// 建立訂單的回應額外帶有被略過的明細
type createOrderResponse struct {
	orderResponse
	SkippedProducts []services.SkippedProduct `json:"skipped_products"`
}

func newCreateOrderResponse(result *services.CreateOrderResult) createOrderResponse {
	skipped := result.Skipped
	if skipped == nil {
		skipped = []services.SkippedProduct{}
	}
	return createOrderResponse{
		orderResponse:   newOrderResponse(result.Order),
		SkippedProducts: skipped,
	}
}
