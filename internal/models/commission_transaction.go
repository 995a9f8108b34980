package models

import (
	"time"
)

// CommissionTransaction 佣金流水（每个收款人每笔订单每种类型一条）
type CommissionTransaction struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                                                      // 主键
	PayeeID          uint       `gorm:"not null;index;index:idx_commission_unique,unique" json:"payee_id"`                         // 收款推广人
	OrderID          uint       `gorm:"not null;index;index:idx_commission_unique,unique" json:"order_id"`                         // 来源订单
	Kind             string     `gorm:"type:varchar(32);not null;default:'direct';index:idx_commission_unique,unique" json:"kind"` // 流水类型（直推/合作者直推/员工提成）
	OrderValue       Money      `gorm:"not null;default:0" json:"order_value"`                                                     // 计佣基数
	CommissionRate   Rate       `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`                              // 佣金比例（百分比）
	CommissionAmount Money      `gorm:"not null;default:0" json:"commission_amount"`                                               // 佣金金额
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`                                             // 流水状态
	CreditedStatus   string     `gorm:"type:varchar(20);not null;default:''" json:"credited_status"`                               // 已触发入账的生命周期节点
	CreditedAt       *time.Time `json:"credited_at,omitempty"`                                                                     // 入账时间
	PaymentInfo      string     `gorm:"type:varchar(255);not null;default:''" json:"payment_info,omitempty"`                       // 打款信息
	Reason           string     `gorm:"type:varchar(255);not null;default:''" json:"reason,omitempty"`                             // 驳回/取消原因
	Note             string     `gorm:"type:varchar(255);not null;default:''" json:"note,omitempty"`                               // 备注
	OperatorAdminID  *uint      `gorm:"index" json:"operator_admin_id,omitempty"`                                                  // 最后操作管理员
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`                                                                     // 审核通过时间
	PaidAt           *time.Time `json:"paid_at,omitempty"`                                                                         // 打款时间
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`                                                                     // 驳回时间
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`                                                                    // 取消时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                                                   // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                                                   // 更新时间

	Payee *User  `gorm:"foreignKey:PayeeID" json:"payee,omitempty"` // 收款人
	Order *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"` // 关联订单
}

// TableName 指定表名
func (CommissionTransaction) TableName() string {
	return "commission_transactions"
}
