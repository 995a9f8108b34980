package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"
)

const commissionBulkMaxIDs = 500

// commissionTransition 批量动作对应的源状态与目标状态
type commissionTransition struct {
	from []string
	to   string
}

var commissionTransitions = map[string]commissionTransition{
	constants.CommissionActionApprove: {from: []string{constants.CommissionStatusPending}, to: constants.CommissionStatusApproved},
	constants.CommissionActionReject:  {from: []string{constants.CommissionStatusPending}, to: constants.CommissionStatusRejected},
	constants.CommissionActionPay:     {from: []string{constants.CommissionStatusApproved}, to: constants.CommissionStatusPaid},
	constants.CommissionActionCancel: {
		from: []string{constants.CommissionStatusPending, constants.CommissionStatusApproved},
		to:   constants.CommissionStatusCancelled,
	},
}

// IsCommissionAction 是否为合法的批量动作
func IsCommissionAction(action string) bool {
	_, ok := commissionTransitions[strings.ToLower(strings.TrimSpace(action))]
	return ok
}

// CommissionService 佣金状态机
type CommissionService struct {
	uow            repository.UnitOfWork
	commissionRepo repository.CommissionRepository
	wallet         *WalletService
	dispatcher     *EventDispatcher
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	uow repository.UnitOfWork,
	commissionRepo repository.CommissionRepository,
	wallet *WalletService,
	dispatcher *EventDispatcher,
) *CommissionService {
	return &CommissionService{
		uow:            uow,
		commissionRepo: commissionRepo,
		wallet:         wallet,
		dispatcher:     dispatcher,
	}
}

// CommissionBulkInput 管理端批量动作输入
type CommissionBulkInput struct {
	Action      string
	IDs         []uint
	PaymentInfo string
	Reason      string
	AdminID     uint
}

// CommissionBulkResult 批量动作结果
type CommissionBulkResult struct {
	Requested       int    `json:"requested"`
	Transitioned    int    `json:"transitioned"`
	Skipped         int    `json:"skipped"`
	TransitionedIDs []uint `json:"transitioned_ids"`
	SkippedIDs      []uint `json:"skipped_ids"`
}

// commissionChange 已提交的单条流水变更，用于事务提交后发事件
type commissionChange struct {
	row      models.CommissionTransaction
	from     string
	to       string
	credited bool
}

// BulkAction 对一组流水执行同一动作；不在源状态的流水静默跳过
func (s *CommissionService) BulkAction(ctx context.Context, input CommissionBulkInput) (*CommissionBulkResult, error) {
	action := strings.ToLower(strings.TrimSpace(input.Action))
	rule, ok := commissionTransitions[action]
	if !ok {
		return nil, ErrCommissionActionInvalid
	}
	ids := normalizeCommissionIDs(input.IDs)
	if len(ids) == 0 {
		return nil, ErrCommissionIDsRequired
	}
	if len(ids) > commissionBulkMaxIDs {
		return nil, ErrCommissionTooManyIDs
	}

	result := &CommissionBulkResult{
		Requested:       len(ids),
		TransitionedIDs: make([]uint, 0, len(ids)),
		SkippedIDs:      make([]uint, 0),
	}
	var changes []commissionChange
	now := time.Now()
	err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
		result.TransitionedIDs = result.TransitionedIDs[:0]
		result.SkippedIDs = result.SkippedIDs[:0]
		changes = changes[:0]

		rows, err := repos.Commissions.ListByIDs(ids)
		if err != nil {
			return err
		}
		byID := make(map[uint]models.CommissionTransaction, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}
		for _, id := range ids {
			row, found := byID[id]
			if !found {
				result.SkippedIDs = append(result.SkippedIDs, id)
				continue
			}
			updates := buildCommissionUpdates(action, input, now)
			applied, err := repos.Commissions.TransitionStatus(id, rule.from, rule.to, updates)
			if err != nil {
				return err
			}
			if !applied {
				result.SkippedIDs = append(result.SkippedIDs, id)
				continue
			}
			change := commissionChange{row: row, from: row.Status, to: rule.to}
			if action == constants.CommissionActionApprove {
				credited, err := s.wallet.CreditCommissionInTx(repos, &row, constants.CommissionStatusApproved, now)
				if err != nil {
					return err
				}
				change.credited = credited
			}
			changes = append(changes, change)
			result.TransitionedIDs = append(result.TransitionedIDs, id)
		}
		return nil
	})
	if err != nil {
		logger.Errorw("commission_bulk_action_failed", "action", action, "requested", len(ids), "error", err)
		return nil, err
	}

	result.Transitioned = len(result.TransitionedIDs)
	result.Skipped = len(result.SkippedIDs)
	metrics.CommissionTransitionsTotal.WithLabelValues(action, "transitioned").Add(float64(result.Transitioned))
	metrics.CommissionTransitionsTotal.WithLabelValues(action, "skipped").Add(float64(result.Skipped))
	s.emitChanges(changes)
	logger.Infow("commission_bulk_action_done",
		"action", action,
		"admin_id", input.AdminID,
		"requested", result.Requested,
		"transitioned", result.Transitioned,
		"skipped", result.Skipped,
	)
	return result, nil
}

// approvePendingForOrderInTx 订单送达：审核通过全部待审核流水并逐条入账
func (s *CommissionService) approvePendingForOrderInTx(repos *repository.Repositories, orderID uint, now time.Time) ([]commissionChange, error) {
	rows, err := repos.Commissions.ListByOrderAndStatus(orderID, constants.CommissionStatusPending)
	if err != nil {
		return nil, err
	}
	changes := make([]commissionChange, 0, len(rows))
	for i := range rows {
		row := rows[i]
		applied, err := repos.Commissions.TransitionStatus(row.ID,
			[]string{constants.CommissionStatusPending}, constants.CommissionStatusApproved,
			map[string]interface{}{"approved_at": now})
		if err != nil {
			return nil, err
		}
		if !applied {
			continue
		}
		credited, err := s.wallet.CreditCommissionInTx(repos, &row, constants.CommissionStatusApproved, now)
		if err != nil {
			return nil, err
		}
		changes = append(changes, commissionChange{row: row, from: constants.CommissionStatusPending, to: constants.CommissionStatusApproved, credited: credited})
	}
	return changes, nil
}

// rejectPendingForOrderInTx 订单取消：驳回全部待审核流水，不动余额
func (s *CommissionService) rejectPendingForOrderInTx(repos *repository.Repositories, orderID uint, reason string, now time.Time) ([]commissionChange, error) {
	rows, err := repos.Commissions.ListByOrderAndStatus(orderID, constants.CommissionStatusPending)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "order cancelled"
	}
	changes := make([]commissionChange, 0, len(rows))
	for _, row := range rows {
		applied, err := repos.Commissions.TransitionStatus(row.ID,
			[]string{constants.CommissionStatusPending}, constants.CommissionStatusRejected,
			map[string]interface{}{"rejected_at": now, "reason": reason})
		if err != nil {
			return nil, err
		}
		if applied {
			changes = append(changes, commissionChange{row: row, from: constants.CommissionStatusPending, to: constants.CommissionStatusRejected})
		}
	}
	return changes, nil
}

// UpdateNote 更新备注（已打款流水唯一允许修改的字段）
func (s *CommissionService) UpdateNote(id uint, note string) (*models.CommissionTransaction, error) {
	row, err := s.commissionRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrCommissionNotFound
	}
	note = truncateText(strings.TrimSpace(note), 255)
	if err := s.commissionRepo.UpdateNote(id, note); err != nil {
		return nil, err
	}
	row.Note = note
	return row, nil
}

// List 分页查询佣金流水
func (s *CommissionService) List(filter repository.CommissionListFilter) ([]models.CommissionTransaction, int64, error) {
	return s.commissionRepo.List(filter)
}

// ListByOrder 订单下的佣金流水
func (s *CommissionService) ListByOrder(orderID uint) ([]models.CommissionTransaction, error) {
	return s.commissionRepo.ListByOrder(orderID)
}

func (s *CommissionService) emitChanges(changes []commissionChange) {
	for _, change := range changes {
		s.dispatcher.Emit(constants.EventCommissionTransitioned, events.OrderKey(change.row.OrderID), events.CommissionTransitionedData{
			CommissionID: change.row.ID,
			OrderID:      change.row.OrderID,
			PayeeID:      change.row.PayeeID,
			Kind:         change.row.Kind,
			From:         change.from,
			To:           change.to,
			Amount:       change.row.CommissionAmount.Int64(),
			Credited:     change.credited,
		})
	}
}

func buildCommissionUpdates(action string, input CommissionBulkInput, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{}
	if input.AdminID != 0 {
		updates["operator_admin_id"] = input.AdminID
	}
	reason := truncateText(strings.TrimSpace(input.Reason), 255)
	switch action {
	case constants.CommissionActionApprove:
		updates["approved_at"] = now
	case constants.CommissionActionReject:
		updates["rejected_at"] = now
		updates["reason"] = reason
	case constants.CommissionActionPay:
		updates["paid_at"] = now
		updates["payment_info"] = truncateText(strings.TrimSpace(input.PaymentInfo), 255)
	case constants.CommissionActionCancel:
		updates["cancelled_at"] = now
		updates["reason"] = reason
	}
	return updates
}

func normalizeCommissionIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func truncateText(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}

func describeCommissionChanges(changes []commissionChange) string {
	if len(changes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(changes))
	for _, change := range changes {
		parts = append(parts, fmt.Sprintf("%d:%s->%s", change.row.ID, change.from, change.to))
	}
	return strings.Join(parts, ",")
}
