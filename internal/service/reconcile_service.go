package service

import (
	"context"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"
)

const defaultReconcileBatchSize = 100

// ReconcileService 佣金对账：补入账、补审核、取消后已入账报表
type ReconcileService struct {
	uow            repository.UnitOfWork
	orderRepo      repository.OrderRepository
	commissionRepo repository.CommissionRepository
	wallet         *WalletService
	commissions    *CommissionService
	batchSize      int
}

// NewReconcileService 创建对账服务
func NewReconcileService(
	uow repository.UnitOfWork,
	orderRepo repository.OrderRepository,
	commissionRepo repository.CommissionRepository,
	wallet *WalletService,
	commissions *CommissionService,
	batchSize int,
) *ReconcileService {
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	return &ReconcileService{
		uow:            uow,
		orderRepo:      orderRepo,
		commissionRepo: commissionRepo,
		wallet:         wallet,
		commissions:    commissions,
		batchSize:      batchSize,
	}
}

// ReconcileReport 待修复项
type ReconcileReport struct {
	UncreditedCommissions []models.CommissionTransaction `json:"uncredited_commissions"`
	DeliveredWithPending  []models.Order                 `json:"delivered_with_pending"`
}

// ReconcileRepairResult 修复结果
type ReconcileRepairResult struct {
	CreditedCommissions int `json:"credited_commissions"`
	ApprovedOrders      int `json:"approved_orders"`
	Failed              int `json:"failed"`
}

// Inspect 列出需要修复的流水与订单
func (s *ReconcileService) Inspect(limit int) (*ReconcileReport, error) {
	limit = s.resolveLimit(limit)
	rows, err := s.commissionRepo.ListUncredited(limit)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.ListDeliveredWithPendingCommission(limit)
	if err != nil {
		return nil, err
	}
	return &ReconcileReport{UncreditedCommissions: rows, DeliveredWithPending: orders}, nil
}

// Repair 逐条修复，单条失败不影响其他条目
func (s *ReconcileService) Repair(ctx context.Context, limit int) (*ReconcileRepairResult, error) {
	report, err := s.Inspect(limit)
	if err != nil {
		return nil, err
	}
	result := &ReconcileRepairResult{}

	for i := range report.UncreditedCommissions {
		row := report.UncreditedCommissions[i]
		var credited bool
		err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
			var err error
			credited, err = s.wallet.CreditCommissionInTx(repos, &row, constants.CommissionStatusApproved, time.Now())
			return err
		})
		if err != nil {
			result.Failed++
			logger.Warnw("reconcile_credit_failed", "commission_id", row.ID, "error", err)
			continue
		}
		if credited {
			result.CreditedCommissions++
			metrics.ReconcileRepairsTotal.WithLabelValues("credit").Inc()
			logger.Infow("reconcile_commission_credited", "commission_id", row.ID, "payee_id", row.PayeeID)
		}
	}

	for i := range report.DeliveredWithPending {
		order := report.DeliveredWithPending[i]
		var changes []commissionChange
		err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
			var err error
			changes, err = s.commissions.approvePendingForOrderInTx(repos, order.ID, time.Now())
			if err != nil {
				return err
			}
			if order.CommissionStatus == constants.OrderCommissionStatusPending {
				return repos.Orders.UpdateCommissionStatus(order.ID, constants.OrderCommissionStatusApproved)
			}
			return nil
		})
		if err != nil {
			result.Failed++
			logger.Warnw("reconcile_approve_failed", "order_id", order.ID, "error", err)
			continue
		}
		if len(changes) > 0 {
			result.ApprovedOrders++
			metrics.ReconcileRepairsTotal.WithLabelValues("approve").Inc()
			s.commissions.emitChanges(changes)
			logger.Infow("reconcile_order_approved", "order_id", order.ID, "commissions", describeCommissionChanges(changes))
		}
	}
	return result, nil
}

// CancelledAfterPayout 已取消订单中佣金已入账的汇总
func (s *ReconcileService) CancelledAfterPayout(limit int) ([]repository.CancelledAfterPayoutRow, error) {
	return s.commissionRepo.ListCancelledAfterPayout(s.resolveLimit(limit))
}

func (s *ReconcileService) resolveLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return s.batchSize
	}
	return limit
}
