package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/payledger/internal/cache"
	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultWebhookLockTTL       = 30 * time.Second
	defaultWebhookHandleTimeout = 10 * time.Second
	webhookRawBodyMaxLength     = 8192
)

var (
	webhookTxnIDKeys       = []string{"transactionId", "transaction_id", "txnId", "id", "referenceNumber", "reference", "ftCode", "tid"}
	webhookAmountKeys      = []string{"amount", "transferAmount", "transAmount", "creditAmount", "amountIn"}
	webhookDescriptionKeys = []string{"description", "content", "addDescription", "remark", "narrative", "memo"}
	webhookIndexKeys       = []string{"index", "requestIndex"}
	webhookWrapperKeys     = []string{"data", "transaction", "payload"}
)

// BankWebhookPayload 归一化后的银行转账通知
type BankWebhookPayload struct {
	TransactionID string
	Amount        models.Money
	Description   string
	Index         string
}

// BankWebhookInput 回调原始输入
type BankWebhookInput struct {
	Body     []byte
	ClientIP string
}

// BankWebhookResult 回调处理结果，总是可以序列化为银行响应
type BankWebhookResult struct {
	ResponseCode  string
	Message       string
	Outcome       string
	Strategy      string
	Index         string
	ReferenceCode string
	OrderID       uint
}

// BankWebhookOptions 回调处理参数
type BankWebhookOptions struct {
	LockTTL       time.Duration
	HandleTimeout time.Duration
}

// BankWebhookService 银行转账回调：匹配订单并原子标记已支付
type BankWebhookService struct {
	uow            repository.UnitOfWork
	orderRepo      repository.OrderRepository
	webhookLogRepo repository.WebhookLogRepository
	matcher        *PaymentMatcher
	orders         *OrderService
	lockTTL        time.Duration
	handleTimeout  time.Duration
}

// NewBankWebhookService 创建回调服务
func NewBankWebhookService(
	uow repository.UnitOfWork,
	orderRepo repository.OrderRepository,
	webhookLogRepo repository.WebhookLogRepository,
	matcher *PaymentMatcher,
	orders *OrderService,
	opts BankWebhookOptions,
) *BankWebhookService {
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultWebhookLockTTL
	}
	timeout := opts.HandleTimeout
	if timeout <= 0 {
		timeout = defaultWebhookHandleTimeout
	}
	return &BankWebhookService{
		uow:            uow,
		orderRepo:      orderRepo,
		webhookLogRepo: webhookLogRepo,
		matcher:        matcher,
		orders:         orders,
		lockTTL:        lockTTL,
		handleTimeout:  timeout,
	}
}

// Handle 处理一次回调；除持久化失败外均向银行确认接收
func (s *BankWebhookService) Handle(ctx context.Context, input BankWebhookInput) *BankWebhookResult {
	started := time.Now()
	defer func() {
		metrics.WebhookHandleDuration.Observe(time.Since(started).Seconds())
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.handleTimeout)
	defer cancel()

	payload, err := ParseBankWebhookPayload(input.Body)
	if err != nil {
		log := logger.SW("provider", constants.WebhookProviderBank, "client_ip", input.ClientIP, "body_size", len(input.Body))
		log.Warnw("payment_webhook_malformed", "error", err)
		result := &BankWebhookResult{
			ResponseCode: constants.BankResponseCodeMalformed,
			Message:      "malformed payload",
			Outcome:      constants.WebhookOutcomeMalformed,
		}
		if payload != nil {
			result.Index = payload.Index
			result.ReferenceCode = payload.TransactionID
		}
		s.finish(input, payload, result, err)
		return result
	}

	log := logger.SW(
		"provider", constants.WebhookProviderBank,
		"txn_id", payload.TransactionID,
		"amount", payload.Amount.Int64(),
	)
	result, err := s.process(ctx, payload, log)
	if err != nil {
		log.Errorw("payment_webhook_failed", "error", err)
		result = &BankWebhookResult{
			ResponseCode: constants.BankResponseCodeRetry,
			Message:      "temporary failure",
			Outcome:      constants.WebhookOutcomeFailed,
		}
	}
	result.Index = payload.Index
	result.ReferenceCode = payload.TransactionID
	s.finish(input, payload, result, err)
	return result
}

func (s *BankWebhookService) process(ctx context.Context, payload *BankWebhookPayload, log *zap.SugaredLogger) (*BankWebhookResult, error) {
	existing, err := s.orderRepo.GetByPaymentTxnID(payload.TransactionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Infow("payment_webhook_duplicate", "order_id", existing.ID)
		return acceptedResult(constants.WebhookOutcomeDuplicate, "", existing.ID), nil
	}

	lock, acquired, err := cache.TryLock(ctx, "webhook:txn:"+payload.TransactionID, s.lockTTL)
	if err != nil {
		log.Warnw("payment_webhook_lock_failed", "error", err)
	} else if !acquired {
		return nil, ErrWebhookBusy
	}
	defer func() {
		if lock == nil {
			return
		}
		if err := lock.Release(context.Background()); err != nil {
			log.Warnw("payment_webhook_unlock_failed", "error", err)
		}
	}()

	match, err := s.matcher.Match(payload.Description, payload.Amount)
	if err != nil {
		return nil, err
	}
	if match == nil {
		log.Warnw("payment_webhook_unmatched", "description", payload.Description)
		return acceptedResult(constants.WebhookOutcomeUnmatched, "", 0), nil
	}
	order := match.Order
	log = log.With("order_id", order.ID, "order_no", order.OrderNo, "strategy", match.Strategy)
	metrics.WebhookMatchesTotal.WithLabelValues(match.Strategy).Inc()
	if order.TotalAmount != payload.Amount {
		log.Warnw("payment_webhook_amount_mismatch", "order_amount", order.TotalAmount.Int64())
	}
	if order.Status == constants.OrderStatusCancelled {
		log.Warnw("payment_webhook_cancelled_order_paid")
	}

	now := time.Now()
	var applied bool
	err = s.uow.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		applied, err = repos.Orders.MarkPaid(order.ID, payload.TransactionID, now)
		return err
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			log.Infow("payment_webhook_duplicate_race")
			return acceptedResult(constants.WebhookOutcomeDuplicate, match.Strategy, order.ID), nil
		}
		return nil, err
	}
	if !applied {
		// 匹配到的订单已被其他交易结算
		log.Warnw("payment_webhook_order_already_paid")
		return acceptedResult(constants.WebhookOutcomeUnmatched, match.Strategy, order.ID), nil
	}

	order.PaymentStatus = constants.PaymentStatusPaid
	order.PaymentTxnID = &payload.TransactionID
	order.PaidAt = &now
	if order.Status == constants.OrderStatusPending {
		order.Status = constants.OrderStatusConfirmed
		s.orders.dispatcher.NotifyOrderStatus(order, constants.OrderStatusPending, constants.OrderStatusConfirmed, "payment matched")
	}
	s.orders.emitOrderPaid(order, payload.TransactionID, match.Strategy)
	log.Infow("payment_webhook_matched", "token", match.Token)
	return acceptedResult(constants.WebhookOutcomeMatched, match.Strategy, order.ID), nil
}

// finish 记录指标与审计日志，审计写入失败不影响响应
func (s *BankWebhookService) finish(input BankWebhookInput, payload *BankWebhookPayload, result *BankWebhookResult, cause error) {
	metrics.WebhookRequestsTotal.WithLabelValues(result.Outcome).Inc()
	if s.webhookLogRepo == nil {
		return
	}
	entry := &models.WebhookLog{
		Provider:     constants.WebhookProviderBank,
		Outcome:      result.Outcome,
		Strategy:     result.Strategy,
		ResponseCode: result.ResponseCode,
		ClientIP:     truncateText(strings.TrimSpace(input.ClientIP), 64),
		RawBody:      truncateText(string(input.Body), webhookRawBodyMaxLength),
		CreatedAt:    time.Now(),
	}
	if payload != nil {
		entry.TransactionID = truncateText(payload.TransactionID, 128)
		entry.Amount = payload.Amount
		entry.Description = payload.Description
	}
	if result.OrderID != 0 {
		orderID := result.OrderID
		entry.MatchedOrderID = &orderID
	}
	if cause != nil {
		entry.ErrorMessage = truncateText(cause.Error(), 500)
	}
	if err := s.webhookLogRepo.Create(entry); err != nil {
		logger.Warnw("payment_webhook_audit_failed", "txn_id", entry.TransactionID, "error", err)
	}
}

// ListLogs 查询回调审计日志
func (s *BankWebhookService) ListLogs(filter repository.WebhookLogListFilter) ([]models.WebhookLog, int64, error) {
	return s.webhookLogRepo.List(filter)
}

func acceptedResult(outcome, strategy string, orderID uint) *BankWebhookResult {
	return &BankWebhookResult{
		ResponseCode: constants.BankResponseCodeAccepted,
		Message:      "success",
		Outcome:      outcome,
		Strategy:     strategy,
		OrderID:      orderID,
	}
}

// ParseBankWebhookPayload 按别名解析回调报文；出错时仍尽量返回已解析的字段
func ParseBankWebhookPayload(body []byte) (*BankWebhookPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrWebhookMalformed)
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookMalformed, err)
	}
	fields := flattenWebhookFields(raw)

	payload := &BankWebhookPayload{
		TransactionID: lookupWebhookString(fields, webhookTxnIDKeys),
		Description:   strings.TrimSpace(lookupWebhookString(fields, webhookDescriptionKeys)),
		Index:         lookupWebhookString(fields, webhookIndexKeys),
	}
	if payload.TransactionID == "" {
		return payload, fmt.Errorf("%w: missing transaction id", ErrWebhookMalformed)
	}
	if payload.Description == "" {
		return payload, fmt.Errorf("%w: missing description", ErrWebhookMalformed)
	}
	amountText := lookupWebhookString(fields, webhookAmountKeys)
	if amountText == "" {
		return payload, fmt.Errorf("%w: missing amount", ErrWebhookMalformed)
	}
	amount, err := models.ParseMoney(amountText)
	if err != nil {
		return payload, fmt.Errorf("%w: invalid amount %q", ErrWebhookMalformed, amountText)
	}
	if amount <= 0 {
		return payload, fmt.Errorf("%w: non-positive amount", ErrWebhookMalformed)
	}
	payload.Amount = amount
	return payload, nil
}

// flattenWebhookFields 顶层字段优先，缺失时回落到常见的包裹对象
func flattenWebhookFields(raw map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(raw))
	for _, key := range webhookWrapperKeys {
		nested, ok := raw[key].(map[string]interface{})
		if !ok {
			continue
		}
		for k, v := range nested {
			fields[k] = v
		}
	}
	for k, v := range raw {
		if _, isObject := v.(map[string]interface{}); isObject {
			continue
		}
		fields[k] = v
	}
	return fields
}

func lookupWebhookString(fields map[string]interface{}, keys []string) string {
	for _, key := range keys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case json.Number:
			text = v.String()
		case float64:
			text = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			continue
		default:
			text = fmt.Sprint(v)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

// IsWebhookMalformed 判断是否为报文格式错误
func IsWebhookMalformed(err error) bool {
	return errors.Is(err, ErrWebhookMalformed)
}
