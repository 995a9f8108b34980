package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表（含推广人字段）
type User struct {
	ID                     uint           `gorm:"primarykey" json:"id"`                                              // 主键
	Email                  string         `gorm:"uniqueIndex;not null" json:"email"`                                 // 邮箱
	DisplayName            string         `gorm:"default:''" json:"display_name"`                                    // 昵称
	Status                 string         `gorm:"default:'active'" json:"status"`                                    // 账号状态
	ReferralCode           *string        `gorm:"type:varchar(32);uniqueIndex" json:"referral_code,omitempty"`       // 推广码（唯一，非推广人为空）
	AffiliateLevel         string         `gorm:"type:varchar(20);not null;default:'';index" json:"affiliate_level"` // 推广级别 staff/collaborator
	ParentStaffID          *uint          `gorm:"index" json:"parent_staff_id,omitempty"`                            // 上级员工（仅合作者）
	CommissionRateOverride *Rate          `gorm:"type:decimal(10,2)" json:"commission_rate_override,omitempty"`      // 个人佣金比例
	StaffCommissionRate    *Rate          `gorm:"type:decimal(10,2)" json:"staff_commission_rate,omitempty"`         // 员工提成比例
	WalletBalance          Money          `gorm:"not null;default:0" json:"wallet_balance"`                          // 可用余额（仅钱包账本写入）
	TotalCommission        Money          `gorm:"not null;default:0" json:"total_commission"`                        // 累计佣金（仅钱包账本写入）
	CreatedAt              time.Time      `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt              time.Time      `gorm:"index" json:"updated_at"`                                           // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`                                                    // 软删除时间

	ParentStaff *User `gorm:"foreignKey:ParentStaffID" json:"parent_staff,omitempty"` // 上级员工
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// IsAffiliate 是否为推广人
func (u *User) IsAffiliate() bool {
	return u != nil && u.ReferralCode != nil && *u.ReferralCode != ""
}
