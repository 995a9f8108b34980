package service

import "errors"

// 订单相关错误
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidOrderItem       = errors.New("invalid order item")
	ErrInvalidOrderAmount     = errors.New("invalid order amount")
	ErrInvalidOrderStatus     = errors.New("invalid order status")
	ErrOrderStatusBackward    = errors.New("order status cannot move backward")
	ErrOrderStatusConflict    = errors.New("order status changed concurrently")
	ErrOrderAlreadyFinal      = errors.New("order already delivered or cancelled")
	ErrOrderNotCancelled      = errors.New("order is not cancelled")
	ErrOrderHasCreditedIncome = errors.New("order has credited commission")
	ErrOrderNoGenerateFailed  = errors.New("order number generation failed")
	ErrPaymentMethodInvalid   = errors.New("invalid payment method")
	ErrOrderFetchFailed       = errors.New("order fetch failed")
	ErrOrderUpdateFailed      = errors.New("order update failed")
	ErrOrderCreateFailed      = errors.New("order create failed")
)

// 支付回调相关错误
var (
	ErrWebhookMalformed = errors.New("webhook payload malformed")
	ErrWebhookBusy      = errors.New("webhook transaction in progress")
)

// 佣金相关错误
var (
	ErrCommissionActionInvalid = errors.New("invalid commission action")
	ErrCommissionIDsRequired   = errors.New("commission ids required")
	ErrCommissionTooManyIDs    = errors.New("too many commission ids")
	ErrCommissionNotFound      = errors.New("commission not found")
)

// 推广人与钱包相关错误
var (
	ErrAffiliateNotFound             = errors.New("affiliate not found")
	ErrAffiliateRateInvalid          = errors.New("invalid affiliate rate")
	ErrAffiliateLevelInvalid         = errors.New("invalid affiliate level")
	ErrAffiliateParentInvalid        = errors.New("invalid parent staff")
	ErrReferralCodeTaken             = errors.New("referral code already taken")
	ErrWalletAmountInvalid           = errors.New("invalid wallet amount")
	ErrWalletUserNotFound            = errors.New("wallet user not found")
	ErrWalletTransactionCreateFailed = errors.New("wallet transaction create failed")
)

// 通用错误
var (
	ErrQueueUnavailable   = errors.New("queue unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAdminTokenInvalid  = errors.New("admin token invalid")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
