package models

import "time"

// OrderItem 订单项（价格由调用方提供，商品目录不在本服务内）
type OrderItem struct {
	ID         uint      `gorm:"primarykey" json:"id"`                       // 主键
	OrderID    uint      `gorm:"index;not null" json:"order_id"`             // 订单ID
	ProductID  uint      `gorm:"index;not null;default:0" json:"product_id"` // 商品ID
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`     // 商品名称快照
	UnitPrice  Money     `gorm:"not null;default:0" json:"unit_price"`       // 单价
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`         // 数量
	TotalPrice Money     `gorm:"not null;default:0" json:"total_price"`      // 小计
	CreatedAt  time.Time `json:"created_at"`                                 // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
