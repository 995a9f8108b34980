package queue

import (
	"encoding/json"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderStatusNotify 订单状态变更通知任务
	TaskOrderStatusNotify = constants.TaskOrderStatusNotify
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
	// TaskCommissionReconcile 佣金对账任务
	TaskCommissionReconcile = constants.TaskCommissionReconcile
	// TaskEventPublish 领域事件投递任务
	TaskEventPublish = constants.TaskEventPublish
)

// OrderStatusNotifyPayload 订单状态通知任务载荷
type OrderStatusNotifyPayload struct {
	OrderID uint   `json:"order_id"`
	OrderNo string `json:"order_no"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// CommissionReconcilePayload 对账任务载荷
type CommissionReconcilePayload struct {
	BatchSize int `json:"batch_size"`
}

// NewOrderStatusNotifyTask 创建订单状态通知任务
func NewOrderStatusNotifyTask(payload OrderStatusNotifyPayload) (*asynq.Task, error) {
	return newJSONTask(TaskOrderStatusNotify, payload)
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	return newJSONTask(TaskOrderTimeoutCancel, payload)
}

// NewCommissionReconcileTask 创建对账任务
func NewCommissionReconcileTask(payload CommissionReconcilePayload) (*asynq.Task, error) {
	return newJSONTask(TaskCommissionReconcile, payload)
}

// NewEventPublishTask 创建事件投递任务
func NewEventPublishTask(event events.Envelope) (*asynq.Task, error) {
	return newJSONTask(TaskEventPublish, event)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
