package models

import "time"

// WalletTransaction 钱包入账流水（只追加）
type WalletTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                    // 主键
	UserID        uint      `gorm:"not null;index" json:"user_id"`                           // 推广人
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`             // 流水类型
	Amount        Money     `gorm:"not null" json:"amount"`                                  // 入账金额
	BalanceBefore Money     `gorm:"not null" json:"balance_before"`                          // 入账前余额
	BalanceAfter  Money     `gorm:"not null" json:"balance_after"`                           // 入账后余额
	CommissionID  *uint     `gorm:"index" json:"commission_id,omitempty"`                    // 关联佣金流水
	OrderID       *uint     `gorm:"index" json:"order_id,omitempty"`                         // 关联订单
	Reference     string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"` // 幂等引用
	Remark        string    `gorm:"type:varchar(255);not null;default:''" json:"remark"`     // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                 // 创建时间
}

// TableName 指定表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
