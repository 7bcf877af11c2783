package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"Marketplace/models"
	"Marketplace/services"
)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// 解析JSON數字或數字字串，未提供、null或空字串時回傳nil
func parseNumber(raw json.RawMessage) (*decimal.Decimal, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, true
	}

	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, true
		}
	}

	value, err := decimal.NewFromString(text)
	if err != nil {
		return nil, false
	}
	return &value, true
}

// 解析整數，"2"與2.0視為2，1.5視為格式錯誤
func parseInteger(raw json.RawMessage) (*int64, bool) {
	value, ok := parseNumber(raw)
	if !ok || value == nil {
		return nil, ok
	}
	if !value.IsInteger() || value.LessThan(minInt64) || value.GreaterThan(maxInt64) {
		return nil, false
	}

	n := value.IntPart()
	return &n, true
}

// 依欄位順序檢查，較前面的欄位缺漏時交由訂單服務回報
func parseOrderItem(raw json.RawMessage) services.OrderItemInput {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return services.OrderItemInput{Malformed: services.SkipMalformedItem}
	}

	var item services.OrderItemInput

	productID, ok := parseInteger(fields["product_id"])
	if !ok {
		item.Malformed = services.SkipInvalidProductID
		return item
	}
	item.ProductID = productID
	if productID == nil {
		return item
	}

	quantity, ok := parseInteger(fields["quantity"])
	if !ok {
		item.Malformed = services.SkipInvalidQuantity
		return item
	}
	item.Quantity = quantity
	return item
}

// parseCreateOrderRequest 逐欄位解析建立訂單的請求
//
// 欄位格式錯誤時視同未提供，由訂單服務依驗證順序回報錯誤；
// 單筆明細格式錯誤只會略過該筆明細。
func parseCreateOrderRequest(body []byte, buyerID uint) services.CreateOrderInput {
	input := services.CreateOrderInput{BuyerID: buyerID}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return input
	}

	var items []json.RawMessage
	if err := json.Unmarshal(fields["products"], &items); err == nil {
		for _, raw := range items {
			input.Products = append(input.Products, parseOrderItem(raw))
		}
	}

	if seller, ok := parseInteger(fields["seller"]); ok && seller != nil && *seller > 0 {
		input.SellerID = uint(*seller)
	}

	input.TotalPrice, _ = parseNumber(fields["totalPrice"])

	if raw := fields["paymentMethod"]; len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &input.PaymentMethod); err != nil {
			//非字串的付款方式一律不合法
			input.PaymentMethod = string(raw)
		}
	}

	return input
}

// 建立訂單
func (h *Handler) CreateOrderHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondDetail(c, http.StatusBadRequest, "Unable to read request body.")
		return
	}
	input := parseCreateOrderRequest(body, userID)

	result, err := h.orders.CreateOrder(c.Request.Context(), input)
	if err != nil {
		h.orderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newCreateOrderResponse(result))
}

// 查詢自己的訂單列表
func (h *Handler) GetOrderListHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		h.orderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) GetOrderHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		h.orderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *Handler) DeleteOrderHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), orderID, userID); err != nil {
		h.orderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// 修改訂單狀態
func (h *Handler) UpdateOrderStatusHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, userID, c.Param("status"))
	if err != nil {
		h.orderError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(order))
}

// 查詢自己所有訂單的總金額
func (h *Handler) GetOrderTotalHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	total, err := h.orders.TotalPrice(c.Request.Context(), userID)
	if err != nil {
		h.orderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total.StringFixed(2),
	})
}

// 查詢所有使用者的訂單中包含此商品的明細筆數
func (h *Handler) GetProductOrderCountHandler(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}

	count, err := h.orders.CountByProduct(c.Request.Context(), productID)
	if err != nil {
		h.orderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": count,
	})
}

func (h *Handler) respondOrders(c *gin.Context, orders []models.Order, err error) {
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) GetUserOrdersHandler(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	orders, err := h.orders.ListByUser(c.Request.Context(), userID)
	h.respondOrders(c, orders, err)
}

func (h *Handler) GetOrdersByStatusHandler(c *gin.Context) {
	orders, err := h.orders.ListByStatus(c.Request.Context(), c.Param("status"))
	h.respondOrders(c, orders, err)
}

func (h *Handler) GetUserOrdersByStatusHandler(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	orders, err := h.orders.ListByUserAndStatus(c.Request.Context(), userID, c.Param("status"))
	h.respondOrders(c, orders, err)
}
