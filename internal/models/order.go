package models

import (
	"time"

	"github.com/payledger/internal/constants"
)

// Order 订单表
type Order struct {
	ID                  uint       `gorm:"primarykey" json:"id"`                                                    // 主键
	OrderNo             string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_no"`                   // 订单编号（对外不透明标识）
	PaymentRef          string     `gorm:"type:varchar(16);uniqueIndex;not null" json:"payment_ref"`                // 转账备注参考码
	UserID              uint       `gorm:"index;not null;default:0" json:"user_id"`                                 // 下单用户ID（游客为 0）
	Status              string     `gorm:"type:varchar(20);index;not null" json:"status"`                           // 履约状态
	PaymentStatus       string     `gorm:"type:varchar(20);index;not null" json:"payment_status"`                   // 支付状态
	PaymentMethod       string     `gorm:"type:varchar(32);not null;default:''" json:"payment_method"`              // 支付方式
	PaymentTxnID        *string    `gorm:"type:varchar(128);uniqueIndex" json:"payment_txn_id,omitempty"`           // 外部交易号（结算时写入一次）
	ItemsSubtotal       Money      `gorm:"not null;default:0" json:"items_subtotal"`                                // 商品小计（佣金基数，不含运费）
	ShippingFee         Money      `gorm:"not null;default:0" json:"shipping_fee"`                                  // 运费
	DiscountAmount      Money      `gorm:"not null;default:0" json:"discount_amount"`                               // 优惠金额
	OriginalTotalAmount Money      `gorm:"not null;default:0" json:"original_total_amount"`                         // 原始总额（小计 + 运费）
	TotalAmount         Money      `gorm:"index;not null;default:0" json:"total_amount"`                            // 应付金额
	ReferrerID          *uint      `gorm:"index" json:"referrer_id,omitempty"`                                      // 推广人
	ReferralCode        string     `gorm:"type:varchar(32);not null;default:''" json:"referral_code,omitempty"`     // 下单时推广码快照
	CommissionAmount    Money      `gorm:"not null;default:0" json:"commission_amount"`                             // 佣金合计
	CommissionStatus    string     `gorm:"type:varchar(20);index;not null;default:'none'" json:"commission_status"` // 佣金汇总状态
	CancelReason        string     `gorm:"type:varchar(255);not null;default:''" json:"cancel_reason,omitempty"`    // 取消原因
	PaidAt              *time.Time `gorm:"index" json:"paid_at"`                                                    // 支付时间
	ConfirmedAt         *time.Time `json:"confirmed_at"`                                                            // 确认时间
	ShippedAt           *time.Time `json:"shipped_at"`                                                              // 发货时间
	DeliveredAt         *time.Time `gorm:"index" json:"delivered_at"`                                               // 送达时间
	CanceledAt          *time.Time `gorm:"index" json:"canceled_at"`                                                // 取消时间
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`                                                 // 创建时间
	UpdatedAt           time.Time  `gorm:"index" json:"updated_at"`                                                 // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsPaid 是否已支付
func (o *Order) IsPaid() bool {
	return o != nil && o.PaymentStatus == constants.PaymentStatusPaid
}
