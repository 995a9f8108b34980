package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/payledger/internal/config"
	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/provider"
	"github.com/payledger/internal/queue"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *events.MemoryPublisher) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	publisher := &events.MemoryPublisher{}
	container := provider.NewContainerWithDB(&config.Config{}, db, publisher)
	return NewConsumer(container), publisher
}

func TestHandleOrderStatusNotifyPublishesEvent(t *testing.T) {
	consumer, publisher := setupWorkerTest(t)
	task, err := queue.NewOrderStatusNotifyTask(queue.OrderStatusNotifyPayload{
		OrderID: 12,
		OrderNo: "PL260101120000ABC123",
		From:    constants.OrderStatusPending,
		To:      constants.OrderStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleOrderStatusNotify(context.Background(), task); err != nil {
		t.Fatalf("handle notify failed: %v", err)
	}
	if got := publisher.CountByType(constants.EventOrderStatusChanged); got != 1 {
		t.Fatalf("status event count want 1 got %d", got)
	}
	var data events.OrderStatusChangedData
	if err := json.Unmarshal(publisher.Events()[0].Data, &data); err != nil {
		t.Fatalf("decode event data failed: %v", err)
	}
	if data.OrderID != 12 || data.To != constants.OrderStatusConfirmed {
		t.Fatalf("unexpected event data: %+v", data)
	}
}

func TestHandleOrderStatusNotifySkipsZeroOrder(t *testing.T) {
	consumer, publisher := setupWorkerTest(t)
	task, _ := queue.NewOrderStatusNotifyTask(queue.OrderStatusNotifyPayload{})
	if err := consumer.handleOrderStatusNotify(context.Background(), task); err != nil {
		t.Fatalf("zero order should be skipped, got %v", err)
	}
	if len(publisher.Events()) != 0 {
		t.Fatalf("no event expected for zero order")
	}
}

func TestHandleEventPublishForwardsEnvelope(t *testing.T) {
	consumer, publisher := setupWorkerTest(t)
	event, err := events.New(constants.EventOrderPaid, events.OrderKey(5), events.OrderPaidData{OrderID: 5, Amount: 372200})
	if err != nil {
		t.Fatalf("build event failed: %v", err)
	}
	task, err := queue.NewEventPublishTask(event)
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleEventPublish(context.Background(), task); err != nil {
		t.Fatalf("handle publish failed: %v", err)
	}
	got := publisher.Events()
	if len(got) != 1 || got[0].EventID != event.EventID {
		t.Fatalf("envelope should be forwarded unchanged, got %+v", got)
	}
}

func TestHandleEventPublishRejectsBadPayload(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task := asynq.NewTask(queue.TaskEventPublish, []byte("{not json"))
	if err := consumer.handleEventPublish(context.Background(), task); err == nil {
		t.Fatalf("malformed payload should return error")
	}
}

func TestHandleOrderTimeoutCancelMissingOrder(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task, _ := queue.NewOrderTimeoutCancelTask(queue.OrderTimeoutCancelPayload{OrderID: 999})
	if err := consumer.handleOrderTimeoutCancel(context.Background(), task); err != nil {
		t.Fatalf("missing order should be skipped, got %v", err)
	}
}

func TestHandleCommissionReconcileEmptyLedger(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task, _ := queue.NewCommissionReconcileTask(queue.CommissionReconcilePayload{BatchSize: 10})
	if err := consumer.handleCommissionReconcile(context.Background(), task); err != nil {
		t.Fatalf("reconcile on empty ledger failed: %v", err)
	}
}
