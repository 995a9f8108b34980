package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope 领域事件统一外壳
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// OrderPaidData 订单支付成功
type OrderPaidData struct {
	OrderID  uint   `json:"order_id"`
	OrderNo  string `json:"order_no"`
	Amount   int64  `json:"amount"`
	TxnID    string `json:"txn_id"`
	Strategy string `json:"strategy"`
}

// OrderStatusChangedData 订单履约状态变更
type OrderStatusChangedData struct {
	OrderID uint   `json:"order_id"`
	OrderNo string `json:"order_no"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// CommissionTransitionedData 佣金流水状态变更
type CommissionTransitionedData struct {
	CommissionID uint   `json:"commission_id"`
	OrderID      uint   `json:"order_id"`
	PayeeID      uint   `json:"payee_id"`
	Kind         string `json:"kind"`
	From         string `json:"from"`
	To           string `json:"to"`
	Amount       int64  `json:"amount"`
	Credited     bool   `json:"credited"`
}

// New 构建事件外壳
func New(eventType, key string, data interface{}) (Envelope, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event data: %w", err)
	}
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Data:      body,
	}, nil
}

// OrderKey 以订单维度分区
func OrderKey(orderID uint) string {
	return fmt.Sprintf("order-%d", orderID)
}
