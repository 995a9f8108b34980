package constants

// 订单履约状态常量（规范值）
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// 订单支付状态常量（规范值）
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// 支付方式常量
const (
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCOD          = "cod"
	PaymentMethodGateway      = "gateway"
)

// 订单佣金汇总状态常量
const (
	OrderCommissionStatusNone      = "none"
	OrderCommissionStatusPending   = "pending"
	OrderCommissionStatusApproved  = "approved"
	OrderCommissionStatusCancelled = "cancelled"
)

// 佣金流水状态常量
const (
	CommissionStatusPending   = "pending"
	CommissionStatusApproved  = "approved"
	CommissionStatusPaid      = "paid"
	CommissionStatusRejected  = "rejected"
	CommissionStatusCancelled = "cancelled"
)

// 佣金流水类型常量
const (
	CommissionKindDirect             = "direct"
	CommissionKindCollaboratorDirect = "collaborator_direct"
	CommissionKindStaffOverride      = "staff_override"
)

// 佣金批量操作常量
const (
	CommissionActionApprove = "approve"
	CommissionActionReject  = "reject"
	CommissionActionPay     = "pay"
	CommissionActionCancel  = "cancel"
)

// 推广人级别常量
const (
	AffiliateLevelNone         = ""
	AffiliateLevelStaff        = "staff"
	AffiliateLevelCollaborator = "collaborator"
)

// 钱包流水类型常量
const (
	WalletTxnTypeCommissionCredit = "commission_credit"
)

// 银行回调匹配策略常量
const (
	MatchStrategyReference = "reference"
	MatchStrategySuffix    = "suffix"
	MatchStrategyAmount    = "amount"
)

// 银行回调处理结果常量
const (
	WebhookOutcomeMatched   = "matched"
	WebhookOutcomeUnmatched = "unmatched"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeMalformed = "malformed"
	WebhookOutcomeFailed    = "failed"
)

// 银行回调响应码
const (
	BankResponseCodeAccepted  = "00000000"
	BankResponseCodeMalformed = "00000001"
	BankResponseCodeRetry     = "00000002"
)

// 银行回调来源
const (
	WebhookProviderBank = "bank"
)

// 异步队列与任务常量
const (
	QueueDefault            = "default"
	QueueCritical           = "critical"
	TaskOrderStatusNotify   = "order:status_notify"
	TaskOrderTimeoutCancel  = "order:timeout_cancel"
	TaskCommissionReconcile = "commission:reconcile"
	TaskEventPublish        = "event:publish"
)

// 领域事件类型
const (
	EventOrderPaid              = "order.paid"
	EventOrderStatusChanged     = "order.status_changed"
	EventCommissionTransitioned = "commission.transitioned"
)

// 推广归因 Cookie
const (
	ReferralCookieName = "ref_code"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
