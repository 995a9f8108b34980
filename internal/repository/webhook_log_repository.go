package repository

import (
	"github.com/payledger/internal/models"

	"gorm.io/gorm"
)

// WebhookLogRepository 回调审计日志数据访问接口
type WebhookLogRepository interface {
	Create(log *models.WebhookLog) error
	List(filter WebhookLogListFilter) ([]models.WebhookLog, int64, error)
}

// GormWebhookLogRepository GORM 回调日志仓储实现
type GormWebhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository 创建回调日志仓储
func NewWebhookLogRepository(db *gorm.DB) *GormWebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

// Create 追加一条回调日志
func (r *GormWebhookLogRepository) Create(log *models.WebhookLog) error {
	return r.db.Create(log).Error
}

// List 分页查询回调日志
func (r *GormWebhookLogRepository) List(filter WebhookLogListFilter) ([]models.WebhookLog, int64, error) {
	query := r.db.Model(&models.WebhookLog{})
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if filter.TransactionID != "" {
		query = query.Where("transaction_id = ?", filter.TransactionID)
	}
	return findPage[models.WebhookLog](query, filter.Page, filter.PageSize)
}
