package routers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Marketplace/cache"
	"Marketplace/jwt"
	"Marketplace/models"
	"Marketplace/testhelpers"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	redis  *miniredis.Miniredis
	tokens *jwt.Manager
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testhelpers.SetupTestDB(t)
	rdb, server := testhelpers.SetupTestRedis(t)
	tokens := jwt.NewManager(testhelpers.PrivateKey(t), time.Hour)

	router, err := SetupRouters(db, rdb, tokens, testhelpers.DiscardLogger())
	require.NoError(t, err)

	return &testServer{
		t:      t,
		db:     db,
		redis:  server,
		tokens: tokens,
		router: router,
	}
}

func (s *testServer) login(user *models.User) string {
	s.t.Helper()

	token, err := s.tokens.IssueToken(s.db, user)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	//字串視為原始請求內容
	var reader *bytes.Reader
	switch raw := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(raw))
	default:
		payload, err := json.Marshal(raw)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, w, &body)
	return body.Detail
}

func (s *testServer) countOrders() int64 {
	var count int64
	require.NoError(s.t, s.db.Model(&models.Order{}).Count(&count).Error)
	return count
}

type marketFixture struct {
	buyer   *models.User
	other   *models.User
	seller  *models.User
	admin   *models.User
	phone   *models.Product
	laptop  *models.Product
	catalog *models.Category
}

func (s *testServer) fixture() marketFixture {
	s.t.Helper()

	seller := testhelpers.CreateUser(s.t, s.db, "seller", models.RoleSeller)
	category := testhelpers.CreateCategory(s.t, s.db, "Electronics")
	return marketFixture{
		buyer:   testhelpers.CreateUser(s.t, s.db, "buyer", models.RoleBuyer),
		other:   testhelpers.CreateUser(s.t, s.db, "other", models.RoleBuyer),
		seller:  seller,
		admin:   testhelpers.CreateUser(s.t, s.db, "root", models.RoleAdmin),
		phone:   testhelpers.CreateProduct(s.t, s.db, "Phone", category, seller),
		laptop:  testhelpers.CreateProduct(s.t, s.db, "Laptop", category, seller),
		catalog: category,
	}
}

type orderBody struct {
	ID            uint   `json:"id"`
	User          string `json:"user"`
	Seller        string `json:"seller"`
	TotalPrice    string `json:"totalPrice"`
	PaymentMethod string `json:"paymentMethod"`
	Status        string `json:"status"`
	OrderProducts []struct {
		ID      uint `json:"id"`
		Product struct {
			ID   uint   `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
		Quantity uint `json:"quantity"`
	} `json:"order_products"`
	SkippedProducts []struct {
		Index     int    `json:"index"`
		ProductID *int64 `json:"product_id"`
		Reason    string `json:"reason"`
	} `json:"skipped_products"`
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	token := s.login(f.buyer)

	w := s.do(http.MethodPost, "/api/v1/Order/create/", token, gin.H{
		"products":      []gin.H{{"product_id": f.phone.ID, "quantity": 2}},
		"seller":        f.seller.ID,
		"totalPrice":    1000.00,
		"paymentMethod": "COD",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order orderBody
	decode(t, w, &order)
	assert.Equal(t, "buyer", order.User)
	assert.Equal(t, "seller", order.Seller)
	assert.Equal(t, "1000.00", order.TotalPrice)
	assert.Equal(t, "COD", order.PaymentMethod)
	assert.Equal(t, "Pending", order.Status)
	require.Len(t, order.OrderProducts, 1)
	assert.Equal(t, f.phone.ID, order.OrderProducts[0].Product.ID)
	assert.Equal(t, uint(2), order.OrderProducts[0].Quantity)
	assert.Empty(t, order.SkippedProducts)

	assert.Equal(t, int64(1), s.countOrders())
	var items []models.OrderProduct
	require.NoError(t, s.db.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, uint(2), items[0].Quantity)

	//建立訂單不扣庫存
	var product models.Product
	require.NoError(t, s.db.First(&product, f.phone.ID).Error)
	assert.Equal(t, uint(5), product.Quantity)
}

func TestCreateOrder_ReportsSkippedProducts(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	token := s.login(f.buyer)

	w := s.do(http.MethodPost, "/api/v1/Order/create/", token, gin.H{
		"products": []interface{}{
			gin.H{"product_id": 9999, "quantity": 1},
			gin.H{"product_id": f.laptop.ID, "quantity": 0},
			gin.H{"product_id": f.phone.ID, "quantity": 1},
			gin.H{"product_id": f.laptop.ID, "quantity": 1.5},
			gin.H{"product_id": "abc", "quantity": 1},
			"oops",
			gin.H{"product_id": fmt.Sprint(f.laptop.ID), "quantity": "2"},
		},
		"seller":     f.seller.ID,
		"totalPrice": "500.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order orderBody
	decode(t, w, &order)
	require.Len(t, order.OrderProducts, 2)
	assert.Equal(t, f.phone.ID, order.OrderProducts[0].Product.ID)
	assert.Equal(t, f.laptop.ID, order.OrderProducts[1].Product.ID)
	assert.Equal(t, uint(2), order.OrderProducts[1].Quantity)

	expected := []struct {
		index  int
		reason string
	}{
		{0, "product not found"},
		{1, "quantity must be positive"},
		{3, "quantity must be an integer"},
		{4, "product_id must be an integer"},
		{5, "line item must be an object"},
	}
	require.Len(t, order.SkippedProducts, len(expected))
	for i, want := range expected {
		assert.Equal(t, want.index, order.SkippedProducts[i].Index)
		assert.Equal(t, want.reason, order.SkippedProducts[i].Reason)
	}
}

func TestCreateOrder_AcceptsNumericStrings(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()

	w := s.do(http.MethodPost, "/api/v1/Order/create/", s.login(f.buyer), fmt.Sprintf(
		`{"products":[{"product_id":"%d","quantity":"2"}],"seller":"%d","totalPrice":"1000.00","paymentMethod":"CARD"}`,
		f.phone.ID, f.seller.ID,
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order orderBody
	decode(t, w, &order)
	assert.Equal(t, "seller", order.Seller)
	assert.Equal(t, "1000.00", order.TotalPrice)
	assert.Equal(t, "CARD", order.PaymentMethod)
	require.Len(t, order.OrderProducts, 1)
	assert.Equal(t, uint(2), order.OrderProducts[0].Quantity)
	assert.Empty(t, order.SkippedProducts)
}

func TestCreateOrder_Validation(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	token := s.login(f.buyer)

	items := []gin.H{{"product_id": f.phone.ID, "quantity": 1}}
	seller := fmt.Sprint(f.seller.ID)
	itemsJSON := fmt.Sprintf(`[{"product_id":%d,"quantity":1}]`, f.phone.ID)

	testCases := []struct {
		name   string
		body   interface{}
		status int
		detail string
	}{
		{"EmptyBody", nil, http.StatusBadRequest, "Products list is required and cannot be empty."},
		{"NotJSON", "{products", http.StatusBadRequest, "Products list is required and cannot be empty."},
		{"ProductsNotList", `{"products":"x","seller":` + seller + `,"totalPrice":10}`, http.StatusBadRequest, "Products list is required and cannot be empty."},
		{"SellerNotNumber", `{"products":` + itemsJSON + `,"seller":"abc","totalPrice":10}`, http.StatusBadRequest, "Seller is required."},
		{"EmptyTotalString", `{"products":` + itemsJSON + `,"seller":` + seller + `,"totalPrice":""}`, http.StatusBadRequest, "Total price is required."},
		{"TotalNotNumber", `{"products":` + itemsJSON + `,"seller":` + seller + `,"totalPrice":"ten"}`, http.StatusBadRequest, "Total price is required."},
		{"TotalTooLarge", gin.H{"products": items, "seller": f.seller.ID, "totalPrice": 1e9}, http.StatusBadRequest, "Total price must not exceed 99999999.99."},
		{"PaymentMethodNotString", gin.H{"products": items, "seller": f.seller.ID, "totalPrice": 10, "paymentMethod": 5}, http.StatusBadRequest, "Invalid payment method."},
		{"EmptyProducts", gin.H{"products": []gin.H{}, "seller": f.seller.ID, "totalPrice": 10}, http.StatusBadRequest, "Products list is required and cannot be empty."},
		{"MissingSeller", gin.H{"products": items, "totalPrice": 10}, http.StatusBadRequest, "Seller is required."},
		{"UnknownSeller", gin.H{"products": items, "seller": 9999, "totalPrice": 10}, http.StatusNotFound, "Seller not found."},
		{"MissingTotal", gin.H{"products": items, "seller": f.seller.ID}, http.StatusBadRequest, "Total price is required."},
		{"ZeroTotal", gin.H{"products": items, "seller": f.seller.ID, "totalPrice": 0}, http.StatusBadRequest, "Total price is required."},
		{"NegativeTotal", gin.H{"products": items, "seller": f.seller.ID, "totalPrice": -1}, http.StatusBadRequest, "Total price must be positive."},
		{"BadPaymentMethod", gin.H{"products": items, "seller": f.seller.ID, "totalPrice": 10, "paymentMethod": "BITCOIN"}, http.StatusBadRequest, "Invalid payment method."},
		{"NoValidProducts", gin.H{"products": []gin.H{{"product_id": 9998, "quantity": 1}, {"product_id": 9999, "quantity": 2}}, "seller": f.seller.ID, "totalPrice": 10}, http.StatusBadRequest, "No valid products to order."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/v1/Order/create/", token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.detail, detail(t, w))
		})
	}

	assert.Zero(t, s.countOrders())
}

func TestOrders_RequireAuthentication(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	order := testhelpers.CreateOrder(t, s.db, f.buyer, f.seller, "10.00", map[*models.Product]uint{f.phone: 1})

	w := s.do(http.MethodPost, "/api/v1/Order/create/", "", gin.H{"products": []gin.H{}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Order/%d/delete/", order.ID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/Order/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, int64(1), s.countOrders())
}

func TestDeleteOrder(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	order := testhelpers.CreateOrder(t, s.db, f.buyer, f.seller, "10.00", map[*models.Product]uint{f.phone: 1, f.laptop: 2})

	//刪除別人的訂單視同不存在
	w := s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Order/%d/delete/", order.ID), s.login(f.other), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found.", detail(t, w))
	assert.Equal(t, int64(1), s.countOrders())

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Order/%d/delete/", order.ID), s.login(f.buyer), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.countOrders())

	var items int64
	require.NoError(t, s.db.Model(&models.OrderProduct{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	order := testhelpers.CreateOrder(t, s.db, f.buyer, f.seller, "10.00", map[*models.Product]uint{f.phone: 1})
	token := s.login(f.buyer)

	w := s.do(http.MethodPut, fmt.Sprintf("/api/v1/Order/%d/Teleported/", order.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status.", detail(t, w))

	var stored models.Order
	require.NoError(t, s.db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Order/%d/Delivered/", order.ID), s.login(f.other), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Order/%d/Delivered/", order.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body orderBody
	decode(t, w, &body)
	assert.Equal(t, "Delivered", body.Status)

	//允許任意狀態轉換
	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Order/%d/Pending/", order.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrderQueries(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	buyerToken := s.login(f.buyer)

	w := s.do(http.MethodGet, "/api/v1/Order/total/", buyerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var total struct {
		Total string `json:"total"`
	}
	decode(t, w, &total)
	assert.True(t, decimal.RequireFromString(total.Total).IsZero())

	first := testhelpers.CreateOrder(t, s.db, f.buyer, f.seller, "100.25", map[*models.Product]uint{f.phone: 1})
	testhelpers.CreateOrder(t, s.db, f.buyer, f.seller, "50.00", map[*models.Product]uint{f.phone: 3, f.laptop: 1})
	testhelpers.CreateOrder(t, s.db, f.other, f.seller, "9.00", map[*models.Product]uint{f.phone: 1})
	require.NoError(t, s.db.Model(&models.Order{}).Where("id = ?", first.ID).Update("status", models.OrderStatusShipped).Error)

	w = s.do(http.MethodGet, "/api/v1/Order/total/", buyerToken, nil)
	decode(t, w, &total)
	assert.Equal(t, "150.25", total.Total)

	//商品被引用次數不限於目前使用者
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Order/Product/%d/count/", f.phone.ID), buyerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, w, &count)
	assert.Equal(t, int64(3), count.Count)

	var orders []orderBody
	w = s.do(http.MethodGet, "/api/v1/Order/", buyerToken, nil)
	decode(t, w, &orders)
	assert.Len(t, orders, 2)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Order/%d/", first.ID), buyerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Order/%d/", first.ID), s.login(f.other), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Order/user/%d/", f.other.ID), buyerToken, nil)
	decode(t, w, &orders)
	assert.Len(t, orders, 1)

	w = s.do(http.MethodGet, "/api/v1/Order/status/Pending/", buyerToken, nil)
	decode(t, w, &orders)
	assert.Len(t, orders, 2)

	w = s.do(http.MethodGet, "/api/v1/Order/status/nonsense/", buyerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &orders)
	assert.Empty(t, orders)

	for _, path := range []string{
		fmt.Sprintf("/api/v1/Order/user/%d/status/Shipped/", f.buyer.ID),
		fmt.Sprintf("/api/v1/user/%d/status/Shipped/", f.buyer.ID),
	} {
		w = s.do(http.MethodGet, path, buyerToken, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		decode(t, w, &orders)
		require.Len(t, orders, 1, path)
		assert.Equal(t, first.ID, orders[0].ID)
	}
}

func TestUserFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/User/register/", "", gin.H{
		"username":     "newbuyer",
		"email":        "newbuyer@example.com",
		"password":     testhelpers.TestPassword,
		"confirmation": "different",
		"role":         "buyer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Passwords must match.", detail(t, w))

	w = s.do(http.MethodPost, "/api/v1/User/register/", "", gin.H{
		"username": "newbuyer",
		"email":    "newbuyer@example.com",
		"password": testhelpers.TestPassword,
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/register/", "", gin.H{
		"username":   "newbuyer",
		"email":      "newbuyer@example.com",
		"password":   testhelpers.TestPassword,
		"first_name": "New",
		"role":       "buyer",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	decode(t, w, &session)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "buyer", session.User.Role)

	w = s.do(http.MethodPost, "/api/v1/User/register/", "", gin.H{
		"username": "newbuyer",
		"email":    "another@example.com",
		"password": testhelpers.TestPassword,
		"role":     "buyer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/login/", "", gin.H{"username": "newbuyer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/login/", "", gin.H{"username": "newbuyer", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/login/", "", gin.H{"username": "newbuyer", "password": testhelpers.TestPassword})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &session)
	token := session.Token

	w = s.do(http.MethodPut, "/api/v1/User/me/profile/update/", token, gin.H{
		"last_name":   "Buyer",
		"phoneNumber": "+15550001",
		"address":     gin.H{"City": "Taipei"},
		"storeName":   "Ignored for buyers",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile struct {
		FirstName   string            `json:"first_name"`
		LastName    string            `json:"last_name"`
		PhoneNumber *string           `json:"phoneNumber"`
		Address     map[string]string `json:"address"`
		StoreName   *string           `json:"storeName"`
		IsVerified  bool              `json:"isVerified"`
		Image       string            `json:"profileImage"`
	}
	decode(t, w, &profile)
	assert.Equal(t, "New", profile.FirstName)
	assert.Equal(t, "Buyer", profile.LastName)
	assert.Equal(t, "Taipei", profile.Address["City"])
	assert.Nil(t, profile.StoreName)

	w = s.do(http.MethodPost, "/api/v1/User/me/activate/", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/me/profile/update-image/", token, gin.H{"profileImage": "avatar.gif"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/v1/User/me/profile/update-image/", token, gin.H{"profileImage": "data:image/png;base64,aGVsbG8="})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/User/me/profile/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &profile)
	assert.True(t, profile.IsVerified)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", profile.Image)

	w = s.do(http.MethodPost, "/api/v1/User/logout/", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/User/me/profile/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/User/register/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	decode(t, w, &users)
	assert.Len(t, users.Users, 1)
}

func TestDeactivatedUserCannotLogin(t *testing.T) {
	s := newTestServer(t)
	user := testhelpers.CreateUser(t, s.db, "leaving", models.RoleBuyer)
	token := s.login(user)

	w := s.do(http.MethodDelete, "/api/v1/User/me/deactivate/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/User/me/profile/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/login/", "", gin.H{"username": "leaving", "password": testhelpers.TestPassword})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account is deactivated.", detail(t, w))
}

func TestAdminUsers(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	adminToken := s.login(f.admin)

	w := s.do(http.MethodPost, "/api/v1/User/admin/", s.login(f.buyer), gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/User/admin/", adminToken, gin.H{
		"username": "ops",
		"email":    "ops@example.com",
		"password": "whatever1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	}
	decode(t, w, &created)
	assert.Equal(t, models.RoleAdmin, created.Role)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/User/admin/%d/", f.buyer.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Admin user not found.", detail(t, w))

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/User/admin/%d/update/", created.ID), adminToken, gin.H{"first_name": "Ops"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/User/admin/%d/update/", created.ID), adminToken, gin.H{"first_name": "Ops"})
	assert.Equal(t, http.StatusOK, w.Code)

	buyerToken := s.login(f.buyer)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/User/admin/changePassword/%d/", f.buyer.ID), adminToken, gin.H{"password": "N3w-Passw0rd"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/User/me/profile/", buyerToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/api/v1/User/login/", "", gin.H{"username": "buyer", "password": "N3w-Passw0rd"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/User/admin/%d/delete/", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/User/admin/%d/", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	adminToken := s.login(f.admin)

	w := s.do(http.MethodPost, "/api/v1/Category/create/", s.login(f.seller), gin.H{"name": "Toys", "description": "Toys"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/Category/create/", adminToken, gin.H{"name": "Toys", "description": "Toys"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category models.Category
	decode(t, w, &category)
	assert.Equal(t, models.DefaultImage, category.ImageCategory)

	w = s.do(http.MethodPost, "/api/v1/Category/create/", adminToken, gin.H{"name": "Toys", "description": "Again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Category/%d/update/", category.ID), adminToken, gin.H{"description": "Games and toys"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &category)
	assert.Equal(t, "Toys", category.Name)
	assert.Equal(t, "Games and toys", category.Description)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Category/update-Image-Category/%d/", category.ID), adminToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/Category/", "", nil)
	var categories []models.Category
	decode(t, w, &categories)
	assert.Len(t, categories, 2)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Category/%d/Products/", f.catalog.ID), "", nil)
	var products []struct {
		Name string `json:"name"`
	}
	decode(t, w, &products)
	assert.Len(t, products, 2)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Category/%d/delete/", f.catalog.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Product/%d/", f.phone.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	sellerToken := s.login(f.seller)

	w := s.do(http.MethodGet, "/api/v1/Product/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []struct {
		ID       uint   `json:"id"`
		Name     string `json:"name"`
		Price    string `json:"price"`
		Seller   string `json:"seller"`
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
	}
	decode(t, w, &products)
	require.Len(t, products, 2)
	assert.Equal(t, "500.00", products[0].Price)
	assert.Equal(t, "seller", products[0].Seller)
	assert.Equal(t, "Electronics", products[0].Category.Name)
	assert.True(t, s.redis.Exists(cache.ProductsKey))

	newProduct := gin.H{
		"name":        "Tablet",
		"description": "A tablet",
		"price":       "299.90",
		"quantity":    3,
		"category_id": f.catalog.ID,
	}
	w = s.do(http.MethodPost, "/api/v1/Product/create/", s.login(f.buyer), newProduct)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only sellers can create products.", detail(t, w))

	newProduct["category_id"] = 9999
	w = s.do(http.MethodPost, "/api/v1/Product/create/", sellerToken, newProduct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	newProduct["category_id"] = f.catalog.ID
	w = s.do(http.MethodPost, "/api/v1/Product/create/", sellerToken, newProduct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID    uint   `json:"id"`
		Price string `json:"price"`
	}
	decode(t, w, &created)
	assert.Equal(t, "299.90", created.Price)

	//新增後快取同步更新
	w = s.do(http.MethodGet, "/api/v1/Product/", "", nil)
	decode(t, w, &products)
	assert.Len(t, products, 3)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Product/%d/update/", created.ID), s.login(f.buyer), gin.H{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Product/%d/update/", created.ID), sellerToken, gin.H{"name": "Tablet Pro", "price": 349})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Product/update-Image-Product/%d/", created.ID), s.login(f.admin), gin.H{"imageProduct": "tablet.png"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/Product/", "", nil)
	decode(t, w, &products)
	require.Len(t, products, 3)
	assert.Equal(t, "Tablet Pro", products[2].Name)
	assert.Equal(t, "349.00", products[2].Price)

	w = s.do(http.MethodGet, "/api/v1/Product/my/", sellerToken, nil)
	decode(t, w, &products)
	assert.Len(t, products, 3)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Product/%d/delete/", created.ID), sellerToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/Product/", "", nil)
	decode(t, w, &products)
	assert.Len(t, products, 2)
}

func TestProductList_RedisDown(t *testing.T) {
	s := newTestServer(t)
	s.fixture()
	s.redis.Close()

	w := s.do(http.MethodGet, "/api/v1/Product/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []struct {
		Name string `json:"name"`
	}
	decode(t, w, &products)
	assert.Len(t, products, 2)
}

func TestCartWishlistReviews(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	token := s.login(f.buyer)

	//購物車數量累加
	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/Cart/%d/", f.phone.ID), token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/Cart/%d/", f.phone.ID), token, gin.H{"quantity": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cartItem struct {
		User     string `json:"user"`
		Quantity uint   `json:"quantity"`
	}
	decode(t, w, &cartItem)
	assert.Equal(t, "buyer", cartItem.User)
	assert.Equal(t, uint(4), cartItem.Quantity)

	w = s.do(http.MethodPost, "/api/v1/Cart/9999/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Cart/%d/delete/", f.laptop.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/Cart/", token, nil)
	var cart []json.RawMessage
	decode(t, w, &cart)
	assert.Len(t, cart, 1)

	w = s.do(http.MethodPut, "/api/v1/Cart/clear/", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/Cart/", token, nil)
	decode(t, w, &cart)
	assert.Empty(t, cart)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/Wishlist/%d/", f.laptop.ID), token, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/Wishlist/%d/", f.laptop.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Product already in wishlist.", detail(t, w))
	w = s.do(http.MethodPost, "/api/v1/Wishlist/9999/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Wishlist/%d/delete/", f.laptop.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Wishlist/%d/delete/", f.laptop.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/Review/%d/", f.phone.ID), token, gin.H{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/Review/%d/", f.phone.ID), token, gin.H{"rating": 4, "review": "Solid"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var review struct {
		ID       uint   `json:"id"`
		UserName string `json:"user_name"`
		Rating   uint   `json:"rating"`
	}
	decode(t, w, &review)
	assert.Equal(t, "buyer", review.UserName)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/Review/%d/", f.phone.ID), token, gin.H{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "You have already reviewed this product.", detail(t, w))

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Review/%d/update/", review.ID), s.login(f.other), gin.H{"rating": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/Review/%d/update/", review.ID), token, gin.H{"rating": 5})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &review)
	assert.Equal(t, uint(5), review.Rating)

	var reviews []json.RawMessage
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Review/%d/list/", f.phone.ID), "", nil)
	decode(t, w, &reviews)
	assert.Len(t, reviews, 1)
	w = s.do(http.MethodGet, "/api/v1/Review/my/list/", token, nil)
	decode(t, w, &reviews)
	assert.Len(t, reviews, 1)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/Review/%d/my/", f.laptop.ID), token, nil)
	decode(t, w, &reviews)
	assert.Empty(t, reviews)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/Review/%d/delete/", review.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/api/v1/Review/", "", nil)
	decode(t, w, &reviews)
	assert.Empty(t, reviews)
}

// 在指定資料表新增前先寫入一筆資料，模擬同時送出的重複請求
func insertBeforeCreate(t *testing.T, db *gorm.DB, table, sql string, args ...interface{}) {
	t.Helper()

	done := false
	err := db.Callback().Create().Before("gorm:create").Register("test:insert_"+table, func(tx *gorm.DB) {
		if done || tx.Statement.Table != table {
			return
		}
		done = true
		if err := tx.Session(&gorm.Session{NewDB: true}).Exec(sql, args...).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

func TestAddReview_ConcurrentDuplicate(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	token := s.login(f.buyer)

	now := time.Now()
	insertBeforeCreate(t, s.db, "reviews",
		"INSERT INTO reviews (user_id, product_id, rating, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		f.buyer.ID, f.phone.ID, 5, now, now)

	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/Review/%d/", f.phone.ID), token, gin.H{"rating": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "You have already reviewed this product.", detail(t, w))

	var count int64
	require.NoError(t, s.db.Model(&models.Review{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddToWishlist_ConcurrentDuplicate(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture()
	token := s.login(f.buyer)

	insertBeforeCreate(t, s.db, "wishlist_items",
		"INSERT INTO wishlist_items (user_id, product_id, added_at) VALUES (?, ?, ?)",
		f.buyer.ID, f.laptop.ID, time.Now())

	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/Wishlist/%d/", f.laptop.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "Product already in wishlist.", detail(t, w))

	var count int64
	require.NoError(t, s.db.Model(&models.WishlistItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
