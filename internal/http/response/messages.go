package response

import "strings"

// messages 错误键 -> 提示文案
var messages = map[string]string{
	"error.bad_request":               "invalid request",
	"error.unauthorized":              "unauthorized",
	"error.invalid_credentials":       "invalid username or password",
	"error.forbidden":                 "forbidden",
	"error.not_found":                 "resource not found",
	"error.too_many_requests":         "too many requests",
	"error.internal":                  "internal error",
	"error.user_id_invalid":           "invalid user id",
	"error.admin_id_invalid":          "invalid admin id",
	"error.context_type_invalid":      "invalid context value",
	"error.order_not_found":           "order not found",
	"error.order_item_invalid":        "invalid order item",
	"error.order_amount_invalid":      "invalid order amount",
	"error.order_status_invalid":      "invalid order status",
	"error.order_status_backward":     "order status cannot move backward",
	"error.order_status_conflict":     "order status changed, please retry",
	"error.order_already_final":       "order already delivered or cancelled",
	"error.order_not_cancelled":       "only cancelled orders can be purged",
	"error.order_has_credited_income": "order has credited commission",
	"error.order_fetch_failed":        "failed to load order",
	"error.order_update_failed":       "failed to update order",
	"error.order_create_failed":       "failed to create order",
	"error.payment_method_invalid":    "invalid payment method",
	"error.commission_action_invalid": "invalid commission action",
	"error.commission_ids_required":   "transaction_ids is required",
	"error.commission_too_many_ids":   "too many transaction ids",
	"error.commission_not_found":      "commission not found",
	"error.commission_update_failed":  "failed to update commissions",
	"error.affiliate_not_found":       "affiliate not found",
	"error.affiliate_rate_invalid":    "rate must be between 0 and 100",
	"error.affiliate_level_invalid":   "invalid affiliate level",
	"error.affiliate_parent_invalid":  "parent must be a staff affiliate",
	"error.referral_code_taken":       "referral code already taken",
	"error.referral_code_invalid":     "referral code not found",
	"error.reconcile_failed":          "reconciliation failed",
	"error.query_failed":              "query failed",
}

// Message 根据错误键返回提示文案，未知键原样返回
func Message(key string) string {
	key = strings.TrimSpace(key)
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
