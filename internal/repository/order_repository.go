package repository

import (
	"strings"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByPaymentTxnID(txnID string) (*models.Order, error)
	FindUnpaidByPaymentRef(paymentRef string) (*models.Order, error)
	ListUnpaidRecent(limit int) ([]models.Order, error)
	ListUnpaidByAmountSince(amount models.Money, since time.Time) ([]models.Order, error)
	ListExpiredUnpaid(before time.Time, limit int) ([]models.Order, error)
	ListDeliveredWithPendingCommission(limit int) ([]models.Order, error)
	MarkPaid(id uint, txnID string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(id uint, at time.Time) (bool, error)
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error)
	UpdateCommissionStatus(id uint, commissionStatus string) error
	List(filter OrderListFilter) ([]models.Order, int64, error)
	Purge(id uint) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 订单仓储实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单（连同订单项）
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &order, nil
}

// GetByPaymentTxnID 根据外部交易号获取已结算订单
func (r *GormOrderRepository) GetByPaymentTxnID(txnID string) (*models.Order, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("payment_txn_id = ?", txnID).First(&order).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &order, nil
}

// FindUnpaidByPaymentRef 按参考码查找未支付订单，重复时取最新
func (r *GormOrderRepository) FindUnpaidByPaymentRef(paymentRef string) (*models.Order, error) {
	paymentRef = strings.ToUpper(strings.TrimSpace(paymentRef))
	if paymentRef == "" {
		return nil, nil
	}
	var order models.Order
	err := r.db.Where("payment_ref = ? AND payment_status <> ?", paymentRef, constants.PaymentStatusPaid).
		Order("created_at DESC").Order("id DESC").
		First(&order).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &order, nil
}

// ListUnpaidRecent 最近的未支付订单（后缀匹配扫描窗口）
func (r *GormOrderRepository) ListUnpaidRecent(limit int) ([]models.Order, error) {
	if limit <= 0 {
		return []models.Order{}, nil
	}
	var orders []models.Order
	err := r.db.Where("payment_status <> ?", constants.PaymentStatusPaid).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListUnpaidByAmountSince 指定时间后创建、金额相等的未支付未取消订单，最新在前
func (r *GormOrderRepository) ListUnpaidByAmountSince(amount models.Money, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("total_amount = ? AND created_at >= ?", amount, since).
		Where("payment_status <> ? AND status <> ?", constants.PaymentStatusPaid, constants.OrderStatusCancelled).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	return orders, err
}

// ListExpiredUnpaid 超时未支付的待处理订单
func (r *GormOrderRepository) ListExpiredUnpaid(before time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.Where("status = ? AND payment_status <> ? AND payment_method <> ? AND created_at < ?",
		constants.OrderStatusPending, constants.PaymentStatusPaid, constants.PaymentMethodCOD, before).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListDeliveredWithPendingCommission 已送达但仍有待审核佣金的订单
func (r *GormOrderRepository) ListDeliveredWithPendingCommission(limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	sub := r.db.Model(&models.CommissionTransaction{}).
		Select("order_id").
		Where("status = ?", constants.CommissionStatusPending)
	err := r.db.Where("status = ? AND id IN (?)", constants.OrderStatusDelivered, sub).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkPaid 原子标记已支付：仅当订单仍未支付时生效，待处理订单同时推进为已确认
func (r *GormOrderRepository) MarkPaid(id uint, txnID string, paidAt time.Time) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", id, constants.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": constants.PaymentStatusPaid,
			"payment_txn_id": txnID,
			"paid_at":        paidAt,
			"confirmed_at": gorm.Expr("CASE WHEN status = ? THEN ? ELSE confirmed_at END",
				constants.OrderStatusPending, paidAt),
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				constants.OrderStatusPending, constants.OrderStatusConfirmed),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkPaymentFailed 网关明确失败时标记，仅对待支付订单生效
func (r *GormOrderRepository) MarkPaymentFailed(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, constants.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": constants.PaymentStatusFailed,
			"updated_at":     at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionStatus 以当前状态为条件更新履约状态
func (r *GormOrderRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateCommissionStatus 更新订单佣金汇总状态
func (r *GormOrderRepository) UpdateCommissionStatus(id uint, commissionStatus string) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Update("commission_status", commissionStatus).Error
}

// List 分页查询订单
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.ReferrerID != 0 {
		query = query.Where("referrer_id = ?", filter.ReferrerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	query = applyKeyword(query, filter.OrderNo, "order_no", "payment_ref")
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	return findPage[models.Order](query, filter.Page, filter.PageSize)
}

// Purge 物理删除订单及其订单项与佣金流水
func (r *GormOrderRepository) Purge(id uint) error {
	if err := r.db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("order_id = ?", id).Delete(&models.CommissionTransaction{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Order{}, id).Error
}
