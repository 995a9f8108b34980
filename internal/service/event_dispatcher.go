package service

import (
	"context"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/queue"
)

const eventPublishTimeout = 2 * time.Second

// EventDispatcher 领域事件与状态通知的旁路出口，失败只记录日志
type EventDispatcher struct {
	queue     *queue.Client
	publisher events.Publisher
}

// NewEventDispatcher 创建事件分发器；队列可用时异步投递，否则直接写入 publisher
func NewEventDispatcher(queueClient *queue.Client, publisher events.Publisher) *EventDispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &EventDispatcher{queue: queueClient, publisher: publisher}
}

// Emit 投递一条领域事件
func (d *EventDispatcher) Emit(eventType, key string, data interface{}) {
	if d == nil {
		return
	}
	event, err := events.New(eventType, key, data)
	if err != nil {
		logger.Warnw("event_build_failed", "event_type", eventType, "error", err)
		return
	}
	if d.queue.Enabled() {
		if err := d.queue.EnqueueEventPublish(event); err != nil {
			metrics.EventPublishTotal.WithLabelValues(eventType, "enqueue_failed").Inc()
			logger.Warnw("event_enqueue_failed", "event_type", eventType, "key", key, "error", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, event); err != nil {
		metrics.EventPublishTotal.WithLabelValues(eventType, "failed").Inc()
		logger.Warnw("event_publish_failed", "event_type", eventType, "key", key, "error", err)
		return
	}
	metrics.EventPublishTotal.WithLabelValues(eventType, "ok").Inc()
}

// NotifyOrderStatus 订单状态变更通知（即发即忘）
func (d *EventDispatcher) NotifyOrderStatus(order *models.Order, from, to, reason string) {
	if d == nil || order == nil {
		return
	}
	payload := queue.OrderStatusNotifyPayload{
		OrderID: order.ID,
		OrderNo: order.OrderNo,
		From:    from,
		To:      to,
		Reason:  reason,
	}
	if d.queue.Enabled() {
		if err := d.queue.EnqueueOrderStatusNotify(payload); err != nil {
			logger.Warnw("order_status_notify_enqueue_failed", "order_id", order.ID, "status", to, "error", err)
		}
		return
	}
	d.Emit(constants.EventOrderStatusChanged, events.OrderKey(order.ID), StatusChangedData(payload))
}

// Publisher 返回底层投递器
func (d *EventDispatcher) Publisher() events.Publisher {
	if d == nil {
		return events.NopPublisher{}
	}
	return d.publisher
}

// StatusChangedData 通知任务载荷转换为事件数据
func StatusChangedData(payload queue.OrderStatusNotifyPayload) events.OrderStatusChangedData {
	return events.OrderStatusChangedData{
		OrderID: payload.OrderID,
		OrderNo: payload.OrderNo,
		From:    payload.From,
		To:      payload.To,
		Reason:  payload.Reason,
	}
}
