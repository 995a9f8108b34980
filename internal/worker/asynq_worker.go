package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/provider"
	"github.com/payledger/internal/queue"
	"github.com/payledger/internal/service"

	"github.com/hibiken/asynq"
)

const eventPublishTimeout = 5 * time.Second

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderStatusNotify, c.handleOrderStatusNotify)
	mux.HandleFunc(queue.TaskEventPublish, c.handleEventPublish)
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
	mux.HandleFunc(queue.TaskCommissionReconcile, c.handleCommissionReconcile)
}

// handleOrderStatusNotify 状态通知落到事件总线
func (c *Consumer) handleOrderStatusNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_status_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStatusNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_status_notify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	event, err := events.New(constants.EventOrderStatusChanged, events.OrderKey(payload.OrderID), service.StatusChangedData(payload))
	if err != nil {
		logger.Warnw("worker_order_status_notify_build_failed", "order_id", payload.OrderID, "error", err)
		return nil
	}
	logger.Infow("worker_order_status_notify",
		"order_id", payload.OrderID,
		"order_no", payload.OrderNo,
		"from", payload.From,
		"to", payload.To,
	)
	return c.publish(ctx, event)
}

func (c *Consumer) handleEventPublish(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_event_publish_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var event events.Envelope
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		logger.Warnw("worker_event_publish_unmarshal_failed", "error", err)
		return err
	}
	if event.EventType == "" {
		logger.Debugw("worker_event_publish_skip_invalid_payload", "event_id", event.EventID)
		return nil
	}
	return c.publish(ctx, event)
}

// publish 失败返回错误交给 asynq 重试
func (c *Consumer) publish(ctx context.Context, event events.Envelope) error {
	publisher := c.EventPublisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	pubCtx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()
	if err := publisher.Publish(pubCtx, event); err != nil {
		metrics.EventPublishTotal.WithLabelValues(event.EventType, "failed").Inc()
		logger.Warnw("worker_event_publish_failed",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"key", event.Key,
			"error", err,
		)
		return err
	}
	metrics.EventPublishTotal.WithLabelValues(event.EventType, "ok").Inc()
	return nil
}

func (c *Consumer) handleOrderTimeoutCancel(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	_, err := c.OrderService.CancelExpiredOrder(ctx, payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_order_timeout_cancel_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderAlreadyFinal), errors.Is(err, service.ErrOrderStatusBackward):
			logger.Debugw("worker_order_timeout_cancel_skip_final", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderFetchFailed):
			logger.Warnw("worker_order_timeout_cancel_fetch_failed", "order_id", payload.OrderID, "error", err)
			return nil
		default:
			logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleCommissionReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionReconcilePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_commission_reconcile_unmarshal_failed", "error", err)
			return err
		}
	}
	if c.ReconcileService == nil {
		logger.Warnw("worker_commission_reconcile_skip_service_nil")
		return nil
	}
	result, err := c.ReconcileService.Repair(ctx, payload.BatchSize)
	if err != nil {
		logger.Warnw("worker_commission_reconcile_failed", "error", err)
		return err
	}
	if result.CreditedCommissions > 0 || result.ApprovedOrders > 0 || result.Failed > 0 {
		logger.Infow("worker_commission_reconcile_done",
			"credited", result.CreditedCommissions,
			"approved_orders", result.ApprovedOrders,
			"failed", result.Failed,
		)
	}
	return nil
}
