package constants

import "strings"

// orderStatusLabels 外部入口使用的订单状态别名 -> 规范状态
var orderStatusLabels = map[string]string{
	"pending":         OrderStatusPending,
	"pending_payment": OrderStatusPending,
	"new":             OrderStatusPending,
	"processing":      OrderStatusConfirmed,
	"confirmed":       OrderStatusConfirmed,
	"paid":            OrderStatusConfirmed,
	"shipped":         OrderStatusShipped,
	"shipping":        OrderStatusShipped,
	"delivered":       OrderStatusDelivered,
	"completed":       OrderStatusDelivered,
	"cancelled":       OrderStatusCancelled,
	"canceled":        OrderStatusCancelled,
}

// paymentStatusLabels 支付状态别名 -> 规范状态
var paymentStatusLabels = map[string]string{
	"pending":   PaymentStatusPending,
	"unpaid":    PaymentStatusPending,
	"paid":      PaymentStatusPaid,
	"completed": PaymentStatusPaid,
	"success":   PaymentStatusPaid,
	"failed":    PaymentStatusFailed,
	"fail":      PaymentStatusFailed,
}

// orderStatusRank 履约推进顺序，取消不参与排序
var orderStatusRank = map[string]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusShipped:   2,
	OrderStatusDelivered: 3,
}

// NormalizeOrderStatus 将外部状态文本映射为规范订单状态
func NormalizeOrderStatus(label string) (string, bool) {
	status, ok := orderStatusLabels[strings.ToLower(strings.TrimSpace(label))]
	return status, ok
}

// NormalizePaymentStatus 将外部支付状态文本映射为规范支付状态
func NormalizePaymentStatus(label string) (string, bool) {
	status, ok := paymentStatusLabels[strings.ToLower(strings.TrimSpace(label))]
	return status, ok
}

// OrderStatusRank 返回履约状态序号，未知或已取消返回 -1
func OrderStatusRank(status string) int {
	rank, ok := orderStatusRank[status]
	if !ok {
		return -1
	}
	return rank
}

// IsPreDeliveredStatus 是否处于可取消的交付前状态
func IsPreDeliveredStatus(status string) bool {
	rank := OrderStatusRank(status)
	return rank >= 0 && rank < orderStatusRank[OrderStatusDelivered]
}
