package repository

import (
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"

	"gorm.io/gorm"
)

// CommissionRepository 佣金流水数据访问接口
type CommissionRepository interface {
	CreateBatch(rows []models.CommissionTransaction) error
	GetByID(id uint) (*models.CommissionTransaction, error)
	ListByIDs(ids []uint) ([]models.CommissionTransaction, error)
	ListByOrder(orderID uint) ([]models.CommissionTransaction, error)
	ListByOrderAndStatus(orderID uint, status string) ([]models.CommissionTransaction, error)
	TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error)
	MarkCredited(id uint, stage string, at time.Time) (bool, error)
	ListUncredited(limit int) ([]models.CommissionTransaction, error)
	SumCreditedByOrder(orderID uint) (models.Money, error)
	ListCancelledAfterPayout(limit int) ([]CancelledAfterPayoutRow, error)
	UpdateNote(id uint, note string) error
	List(filter CommissionListFilter) ([]models.CommissionTransaction, int64, error)
	WithTx(tx *gorm.DB) *GormCommissionRepository
}

// GormCommissionRepository GORM 佣金流水仓储实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金流水仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) *GormCommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// CreateBatch 批量写入佣金流水
func (r *GormCommissionRepository) CreateBatch(rows []models.CommissionTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.Create(&rows).Error
}

// GetByID 根据 ID 获取佣金流水
func (r *GormCommissionRepository) GetByID(id uint) (*models.CommissionTransaction, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.CommissionTransaction
	if err := r.db.First(&row, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &row, nil
}

// ListByIDs 批量获取佣金流水
func (r *GormCommissionRepository) ListByIDs(ids []uint) ([]models.CommissionTransaction, error) {
	if len(ids) == 0 {
		return []models.CommissionTransaction{}, nil
	}
	var rows []models.CommissionTransaction
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&rows).Error
	return rows, err
}

// ListByOrder 订单下全部佣金流水
func (r *GormCommissionRepository) ListByOrder(orderID uint) ([]models.CommissionTransaction, error) {
	var rows []models.CommissionTransaction
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// ListByOrderAndStatus 订单下指定状态的佣金流水
func (r *GormCommissionRepository) ListByOrderAndStatus(orderID uint, status string) ([]models.CommissionTransaction, error) {
	var rows []models.CommissionTransaction
	err := r.db.Where("order_id = ? AND status = ?", orderID, status).Order("id ASC").Find(&rows).Error
	return rows, err
}

// TransitionStatus 以当前状态为条件推进流水状态，返回是否命中
func (r *GormCommissionRepository) TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 {
		return false, nil
	}
	values := map[string]interface{}{}
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	result := r.db.Model(&models.CommissionTransaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkCredited 抢占入账标记，仅首次生效
func (r *GormCommissionRepository) MarkCredited(id uint, stage string, at time.Time) (bool, error) {
	result := r.db.Model(&models.CommissionTransaction{}).
		Where("id = ? AND credited_status = ?", id, "").
		Updates(map[string]interface{}{
			"credited_status": stage,
			"credited_at":     at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListUncredited 已审核/已打款但尚未入账的流水
func (r *GormCommissionRepository) ListUncredited(limit int) ([]models.CommissionTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.CommissionTransaction
	err := r.db.Where("status IN ? AND credited_status = ? AND commission_amount > 0",
		[]string{constants.CommissionStatusApproved, constants.CommissionStatusPaid}, "").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SumCreditedByOrder 订单下已入账金额合计
func (r *GormCommissionRepository) SumCreditedByOrder(orderID uint) (models.Money, error) {
	var total int64
	err := r.db.Model(&models.CommissionTransaction{}).
		Select("COALESCE(SUM(commission_amount), 0)").
		Where("order_id = ? AND credited_status <> ?", orderID, "").
		Scan(&total).Error
	return models.Money(total), err
}

// ListCancelledAfterPayout 已取消订单中仍有已审核/已打款流水的汇总
func (r *GormCommissionRepository) ListCancelledAfterPayout(limit int) ([]CancelledAfterPayoutRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []CancelledAfterPayoutRow
	err := r.db.Table("commission_transactions AS c").
		Select(`o.id AS order_id, o.order_no AS order_no, o.canceled_at AS canceled_at,
			COUNT(c.id) AS entry_count,
			COALESCE(SUM(CASE WHEN c.credited_status <> '' THEN c.commission_amount ELSE 0 END), 0) AS credited_amount,
			COALESCE(SUM(c.commission_amount), 0) AS commission_total`).
		Joins("JOIN orders AS o ON o.id = c.order_id").
		Where("o.status = ? AND c.status IN ?", constants.OrderStatusCancelled,
			[]string{constants.CommissionStatusApproved, constants.CommissionStatusPaid}).
		Group("o.id, o.order_no, o.canceled_at").
		Order("o.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// UpdateNote 更新备注
func (r *GormCommissionRepository) UpdateNote(id uint, note string) error {
	return r.db.Model(&models.CommissionTransaction{}).Where("id = ?", id).Update("note", note).Error
}

// List 分页查询佣金流水
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.CommissionTransaction, int64, error) {
	query := r.db.Model(&models.CommissionTransaction{})
	if filter.PayeeID != 0 {
		query = query.Where("payee_id = ?", filter.PayeeID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}

	return findPage[models.CommissionTransaction](query, filter.Page, filter.PageSize)
}
