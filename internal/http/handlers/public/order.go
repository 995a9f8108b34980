package public

import (
	"time"

	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutItemRequest 下单项
type CheckoutItemRequest struct {
	ProductID uint         `json:"product_id"`
	Name      string       `json:"name" binding:"required,max=255"`
	UnitPrice models.Money `json:"unit_price" binding:"min=0"`
	Quantity  int          `json:"quantity" binding:"required,min=1"`
}

// CheckoutRequest 下单请求
type CheckoutRequest struct {
	UserID         uint                  `json:"user_id"`
	Items          []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingFee    models.Money          `json:"shipping_fee" binding:"min=0"`
	DiscountAmount models.Money          `json:"discount_amount" binding:"min=0"`
	ReferralCode   string                `json:"referral_code" binding:"max=32"`
	PaymentMethod  string                `json:"payment_method"`
}

// Checkout 创建订单
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	order, err := h.OrderService.Checkout(c.Request.Context(), service.CheckoutInput{
		UserID:         req.UserID,
		Items:          items,
		ShippingFee:    req.ShippingFee,
		DiscountAmount: req.DiscountAmount,
		ReferralCode:   resolveReferralCode(c, req.ReferralCode),
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "error.order_create_failed")
		return
	}
	response.Success(c, order)
}

// OrderPaymentView 买家轮询支付状态时返回的精简视图
type OrderPaymentView struct {
	OrderNo       string       `json:"order_no"`
	PaymentRef    string       `json:"payment_ref"`
	Status        string       `json:"status"`
	PaymentStatus string       `json:"payment_status"`
	PaymentMethod string       `json:"payment_method"`
	TotalAmount   models.Money `json:"total_amount"`
	PaidAt        *time.Time   `json:"paid_at"`
}

// GetOrderPayment 按订单号查询支付状态
func (h *Handler) GetOrderPayment(c *gin.Context) {
	order, err := h.OrderService.GetOrderByNo(c.Param("order_no"))
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, OrderPaymentView{
		OrderNo:       order.OrderNo,
		PaymentRef:    order.PaymentRef,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		PaidAt:        order.PaidAt,
	})
}
