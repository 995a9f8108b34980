package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/queue"
	"github.com/payledger/internal/repository"
)

const (
	orderNoRandomLength   = 6
	orderCreateMaxAttempt = 3
	orderExpireReason     = "payment expired"
)

const orderNoAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// OrderService 订单服务
type OrderService struct {
	uow            repository.UnitOfWork
	orderRepo      repository.OrderRepository
	commissionRepo repository.CommissionRepository
	referral       *ReferralService
	commissions    *CommissionService
	dispatcher     *EventDispatcher
	queueClient    *queue.Client
	refPrefix      string
	expireMinutes  int
	now            func() time.Time
}

// OrderServiceOptions 订单服务参数
type OrderServiceOptions struct {
	RefPrefix     string
	ExpireMinutes int
}

// NewOrderService 创建订单服务
func NewOrderService(
	uow repository.UnitOfWork,
	orderRepo repository.OrderRepository,
	commissionRepo repository.CommissionRepository,
	referral *ReferralService,
	commissions *CommissionService,
	dispatcher *EventDispatcher,
	queueClient *queue.Client,
	opts OrderServiceOptions,
) *OrderService {
	prefix := strings.ToUpper(strings.TrimSpace(opts.RefPrefix))
	if prefix == "" {
		prefix = defaultPaymentRefPrefix
	}
	return &OrderService{
		uow:            uow,
		orderRepo:      orderRepo,
		commissionRepo: commissionRepo,
		referral:       referral,
		commissions:    commissions,
		dispatcher:     dispatcher,
		queueClient:    queueClient,
		refPrefix:      prefix,
		expireMinutes:  opts.ExpireMinutes,
		now:            time.Now,
	}
}

// CheckoutItem 下单项（价格由调用方给出）
type CheckoutItem struct {
	ProductID uint
	Name      string
	UnitPrice models.Money
	Quantity  int
}

// CheckoutInput 下单输入
type CheckoutInput struct {
	UserID         uint
	Items          []CheckoutItem
	ShippingFee    models.Money
	DiscountAmount models.Money
	ReferralCode   string
	PaymentMethod  string
}

// Checkout 创建订单并按推广链写入待审核佣金流水，全部在同一事务内完成
func (s *OrderService) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	items, subtotal, err := buildOrderItems(input.Items)
	if err != nil {
		return nil, err
	}
	if input.ShippingFee < 0 || input.DiscountAmount < 0 {
		return nil, ErrInvalidOrderAmount
	}
	originalTotal := subtotal + input.ShippingFee
	if input.DiscountAmount > originalTotal {
		return nil, ErrInvalidOrderAmount
	}
	method, err := normalizePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	chain, err := s.referral.Resolve(input.UserID, input.ReferralCode)
	if err != nil {
		return nil, ErrOrderCreateFailed
	}
	shares := s.referral.Split(input.UserID, subtotal, chain)
	commissionTotal := SumShares(shares)

	var order *models.Order
	for attempt := 1; attempt <= orderCreateMaxAttempt; attempt++ {
		orderNo, err := generateOrderNo()
		if err != nil {
			return nil, ErrOrderNoGenerateFailed
		}
		now := s.now()
		candidate := &models.Order{
			OrderNo:             orderNo,
			PaymentRef:          s.refPrefix + orderNoSuffix(orderNo),
			UserID:              input.UserID,
			Status:              constants.OrderStatusPending,
			PaymentStatus:       constants.PaymentStatusPending,
			PaymentMethod:       method,
			ItemsSubtotal:       subtotal,
			ShippingFee:         input.ShippingFee,
			DiscountAmount:      input.DiscountAmount,
			OriginalTotalAmount: originalTotal,
			TotalAmount:         originalTotal - input.DiscountAmount,
			CommissionAmount:    commissionTotal,
			CommissionStatus:    constants.OrderCommissionStatusNone,
			CreatedAt:           now,
			UpdatedAt:           now,
			Items:               cloneOrderItems(items),
		}
		if chain != nil {
			referrerID := chain.Affiliate.ID
			candidate.ReferrerID = &referrerID
			candidate.ReferralCode = chain.Code
		}
		if commissionTotal > 0 {
			candidate.CommissionStatus = constants.OrderCommissionStatusPending
		}

		err = s.uow.Do(ctx, func(repos *repository.Repositories) error {
			if err := repos.Orders.Create(candidate); err != nil {
				return err
			}
			return repos.Commissions.CreateBatch(buildCommissionRows(candidate, shares))
		})
		if err == nil {
			order = candidate
			break
		}
		if repository.IsUniqueViolation(err) && attempt < orderCreateMaxAttempt {
			logger.Warnw("order_no_collision_retry", "order_no", orderNo, "attempt", attempt)
			continue
		}
		logger.Errorw("order_create_failed", "user_id", input.UserID, "error", err)
		return nil, ErrOrderCreateFailed
	}

	s.scheduleExpiry(order)
	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"payment_ref", order.PaymentRef,
		"total_amount", order.TotalAmount.Int64(),
		"referrer_id", order.ReferrerID,
		"commission_amount", order.CommissionAmount.Int64(),
		"commission_rows", len(shares),
	)
	return order, nil
}

// OrderStatusUpdateInput 管理端状态更新
type OrderStatusUpdateInput struct {
	OrderID uint
	Label   string
	Reason  string
	AdminID uint
}

// UpdateOrderStatus 按外部状态文本推进履约状态，并级联佣金流水
func (s *OrderService) UpdateOrderStatus(ctx context.Context, input OrderStatusUpdateInput) (*models.Order, error) {
	target, ok := constants.NormalizeOrderStatus(input.Label)
	if !ok {
		return nil, ErrInvalidOrderStatus
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == target {
		return order, nil
	}
	if err := checkOrderTransition(order.Status, target); err != nil {
		return nil, err
	}
	return s.applyStatusChange(ctx, order, target, strings.TrimSpace(input.Reason), input.AdminID)
}

// applyStatusChange 条件更新订单状态；送达审核入账，取消驳回待审核流水
func (s *OrderService) applyStatusChange(ctx context.Context, order *models.Order, target, reason string, adminID uint) (*models.Order, error) {
	from := order.Status
	now := s.now()
	reason = truncateText(reason, 255)
	var changes []commissionChange
	var credited models.Money

	err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
		changes = nil
		applied, err := repos.Orders.TransitionStatus(order.ID, from, target, buildStatusTimestamps(order, target, reason, now))
		if err != nil {
			return err
		}
		if !applied {
			return ErrOrderStatusConflict
		}

		switch target {
		case constants.OrderStatusDelivered:
			changes, err = s.commissions.approvePendingForOrderInTx(repos, order.ID, now)
			if err != nil {
				return err
			}
			if order.CommissionStatus == constants.OrderCommissionStatusPending {
				return repos.Orders.UpdateCommissionStatus(order.ID, constants.OrderCommissionStatusApproved)
			}
		case constants.OrderStatusCancelled:
			changes, err = s.commissions.rejectPendingForOrderInTx(repos, order.ID, reason, now)
			if err != nil {
				return err
			}
			if order.CommissionStatus != constants.OrderCommissionStatusNone {
				if err := repos.Orders.UpdateCommissionStatus(order.ID, constants.OrderCommissionStatusCancelled); err != nil {
					return err
				}
			}
			credited, err = repos.Commissions.SumCreditedByOrder(order.ID)
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderStatusConflict) {
			return nil, err
		}
		logger.Errorw("order_status_update_failed", "order_id", order.ID, "from", from, "to", target, "error", err)
		return nil, ErrOrderUpdateFailed
	}

	metrics.OrderStatusTransitionsTotal.WithLabelValues(from, target).Inc()
	if target == constants.OrderStatusCancelled && credited > 0 {
		metrics.CancelledAfterPayoutTotal.Inc()
		logger.Warnw("order_cancelled_after_payout",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"credited_amount", credited.Int64(),
		)
	}
	logger.Infow("order_status_updated",
		"order_id", order.ID,
		"from", from,
		"to", target,
		"admin_id", adminID,
		"commissions", describeCommissionChanges(changes),
	)

	s.dispatcher.NotifyOrderStatus(order, from, target, reason)
	s.commissions.emitChanges(changes)

	updated, err := s.orderRepo.GetByID(order.ID)
	if err != nil || updated == nil {
		order.Status = target
		return order, nil
	}
	return updated, nil
}

// MarkPaymentFailed 网关明确失败；已支付或已失败的订单保持不变
func (s *OrderService) MarkPaymentFailed(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	applied, err := s.orderRepo.MarkPaymentFailed(order.ID, s.now())
	if err != nil {
		return nil, ErrOrderUpdateFailed
	}
	if !applied {
		return order, nil
	}
	order.PaymentStatus = constants.PaymentStatusFailed
	logger.Infow("order_payment_failed", "order_id", order.ID, "order_no", order.OrderNo)
	return order, nil
}

// CancelExpiredOrder 超时未支付的订单自动取消，不满足条件时原样返回
func (s *OrderService) CancelExpiredOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !s.isExpired(order) {
		return order, nil
	}
	updated, err := s.applyStatusChange(ctx, order, constants.OrderStatusCancelled, orderExpireReason, 0)
	if errors.Is(err, ErrOrderStatusConflict) {
		return order, nil
	}
	return updated, err
}

// CancelExpiredOrders 扫描并取消超时订单，返回取消数量
func (s *OrderService) CancelExpiredOrders(ctx context.Context, limit int) (int, error) {
	if s.expireMinutes <= 0 {
		return 0, nil
	}
	before := s.now().Add(-time.Duration(s.expireMinutes) * time.Minute)
	orders, err := s.orderRepo.ListExpiredUnpaid(before, limit)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for i := range orders {
		if ctx.Err() != nil {
			return cancelled, ctx.Err()
		}
		_, err := s.applyStatusChange(ctx, &orders[i], constants.OrderStatusCancelled, orderExpireReason, 0)
		if err != nil {
			if !errors.Is(err, ErrOrderStatusConflict) {
				logger.Warnw("order_expire_cancel_failed", "order_id", orders[i].ID, "error", err)
			}
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// Purge 物理删除已取消且无入账的订单
func (s *OrderService) Purge(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return ErrOrderFetchFailed
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusCancelled {
		return ErrOrderNotCancelled
	}
	err = s.uow.Do(ctx, func(repos *repository.Repositories) error {
		credited, err := repos.Commissions.SumCreditedByOrder(order.ID)
		if err != nil {
			return err
		}
		if credited > 0 {
			return ErrOrderHasCreditedIncome
		}
		return repos.Orders.Purge(order.ID)
	})
	if err != nil {
		if errors.Is(err, ErrOrderHasCreditedIncome) {
			return err
		}
		return ErrOrderUpdateFailed
	}
	logger.Infow("order_purged", "order_id", order.ID, "order_no", order.OrderNo)
	return nil
}

func (s *OrderService) isExpired(order *models.Order) bool {
	if s.expireMinutes <= 0 || order == nil {
		return false
	}
	if order.Status != constants.OrderStatusPending || order.IsPaid() || order.PaymentMethod == constants.PaymentMethodCOD {
		return false
	}
	deadline := order.CreatedAt.Add(time.Duration(s.expireMinutes) * time.Minute)
	return !deadline.After(s.now())
}

func (s *OrderService) scheduleExpiry(order *models.Order) {
	if order == nil || s.expireMinutes <= 0 || order.PaymentMethod == constants.PaymentMethodCOD {
		return
	}
	if !s.queueClient.Enabled() {
		return
	}
	delay := time.Duration(s.expireMinutes) * time.Minute
	if err := s.queueClient.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{OrderID: order.ID}, delay); err != nil {
		logger.Warnw("order_enqueue_timeout_cancel_failed", "order_id", order.ID, "error", err)
	}
}

// emitOrderPaid 支付成功事件
func (s *OrderService) emitOrderPaid(order *models.Order, txnID, strategy string) {
	s.dispatcher.Emit(constants.EventOrderPaid, events.OrderKey(order.ID), events.OrderPaidData{
		OrderID:  order.ID,
		OrderNo:  order.OrderNo,
		Amount:   order.TotalAmount.Int64(),
		TxnID:    txnID,
		Strategy: strategy,
	})
}

func buildOrderItems(inputs []CheckoutItem) ([]models.OrderItem, models.Money, error) {
	if len(inputs) == 0 {
		return nil, 0, ErrInvalidOrderItem
	}
	items := make([]models.OrderItem, 0, len(inputs))
	var subtotal models.Money
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" || input.Quantity <= 0 || input.UnitPrice < 0 {
			return nil, 0, ErrInvalidOrderItem
		}
		total := input.UnitPrice * models.Money(input.Quantity)
		items = append(items, models.OrderItem{
			ProductID:  input.ProductID,
			Name:       truncateText(name, 255),
			UnitPrice:  input.UnitPrice,
			Quantity:   input.Quantity,
			TotalPrice: total,
		})
		subtotal += total
	}
	return items, subtotal, nil
}

func cloneOrderItems(items []models.OrderItem) []models.OrderItem {
	result := make([]models.OrderItem, len(items))
	copy(result, items)
	return result
}

func buildCommissionRows(order *models.Order, shares []CommissionShare) []models.CommissionTransaction {
	rows := make([]models.CommissionTransaction, 0, len(shares))
	for _, share := range shares {
		if share.Amount <= 0 {
			continue
		}
		rows = append(rows, models.CommissionTransaction{
			PayeeID:          share.PayeeID,
			OrderID:          order.ID,
			Kind:             share.Kind,
			OrderValue:       order.ItemsSubtotal,
			CommissionRate:   share.Rate,
			CommissionAmount: share.Amount,
			Status:           constants.CommissionStatusPending,
			CreatedAt:        order.CreatedAt,
			UpdatedAt:        order.CreatedAt,
		})
	}
	return rows
}

func normalizePaymentMethod(raw string) (string, error) {
	method := strings.ToLower(strings.TrimSpace(raw))
	switch method {
	case "":
		return constants.PaymentMethodBankTransfer, nil
	case constants.PaymentMethodBankTransfer, constants.PaymentMethodCOD, constants.PaymentMethodGateway:
		return method, nil
	default:
		return "", ErrPaymentMethodInvalid
	}
}

// generateOrderNo 时间前缀 + 6 位随机字母数字，末 6 位同时用作转账参考码
func generateOrderNo() (string, error) {
	var b strings.Builder
	b.WriteString("PL")
	b.WriteString(time.Now().Format("060102150405"))
	max := big.NewInt(int64(len(orderNoAlphabet)))
	for i := 0; i < orderNoRandomLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate order no: %w", err)
		}
		b.WriteByte(orderNoAlphabet[n.Int64()])
	}
	return b.String(), nil
}
