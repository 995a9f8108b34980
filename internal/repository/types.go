package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	UserID        uint
	ReferrerID    uint
	Status        string
	PaymentStatus string
	OrderNo       string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// CommissionListFilter 查询佣金流水的过滤条件
type CommissionListFilter struct {
	Page     int
	PageSize int
	PayeeID  uint
	OrderID  uint
	Status   string
	Kind     string
}

// WalletTransactionListFilter 查询钱包流水的过滤条件
type WalletTransactionListFilter struct {
	Page     int
	PageSize int
	UserID   uint
}

// WebhookLogListFilter 查询回调日志的过滤条件
type WebhookLogListFilter struct {
	Page          int
	PageSize      int
	Provider      string
	Outcome       string
	TransactionID string
}

// CancelledAfterPayoutRow 取消后佣金已入账的订单汇总
type CancelledAfterPayoutRow struct {
	OrderID         uint       `json:"order_id"`
	OrderNo         string     `json:"order_no"`
	CanceledAt      *time.Time `json:"canceled_at"`
	EntryCount      int64      `json:"entry_count"`
	CreditedAmount  int64      `json:"credited_amount"`
	CommissionTotal int64      `json:"commission_total"`
}
