package models

import "time"

// WebhookLog 支付回调审计日志（只追加，不参与状态机）
type WebhookLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                              // 主键
	Provider       string    `gorm:"type:varchar(32);not null;index" json:"provider"`                   // 回调来源
	TransactionID  string    `gorm:"type:varchar(128);not null;default:'';index" json:"transaction_id"` // 外部交易号
	Amount         Money     `gorm:"not null;default:0" json:"amount"`                                  // 金额
	Description    string    `gorm:"type:text" json:"description"`                                      // 转账备注
	Outcome        string    `gorm:"type:varchar(20);not null;index" json:"outcome"`                    // 处理结果
	Strategy       string    `gorm:"type:varchar(20);not null;default:''" json:"strategy"`              // 命中的匹配策略
	MatchedOrderID *uint     `gorm:"index" json:"matched_order_id,omitempty"`                           // 命中订单
	ResponseCode   string    `gorm:"type:varchar(16);not null;default:''" json:"response_code"`         // 返回给银行的响应码
	ErrorMessage   string    `gorm:"type:varchar(500);not null;default:''" json:"error_message"`        // 错误信息
	ClientIP       string    `gorm:"type:varchar(64);not null;default:''" json:"client_ip"`             // 来源 IP
	RawBody        string    `gorm:"type:text" json:"-"`                                                // 原始报文
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                           // 创建时间
}

// TableName 指定表名
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
