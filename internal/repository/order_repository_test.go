package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupLedgerRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createRepoTestOrder(t *testing.T, db *gorm.DB, orderNo string, total models.Money, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:          orderNo,
		PaymentRef:       "GO" + orderNo[len(orderNo)-6:],
		Status:           constants.OrderStatusPending,
		PaymentStatus:    constants.PaymentStatusPending,
		PaymentMethod:    constants.PaymentMethodBankTransfer,
		ItemsSubtotal:    total,
		TotalAmount:      total,
		CommissionStatus: constants.OrderCommissionStatusNone,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestOrderRepositoryMarkPaidOnlyOnce(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewOrderRepository(db)
	order := createRepoTestOrder(t, db, "20260101120000AB12CD", 372200, time.Now())

	paidAt := time.Now().UTC().Truncate(time.Second)
	ok, err := repo.MarkPaid(order.ID, "FT001", paidAt)
	if err != nil || !ok {
		t.Fatalf("first mark paid should apply, ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkPaid(order.ID, "FT002", paidAt)
	if err != nil {
		t.Fatalf("second mark paid failed: %v", err)
	}
	if ok {
		t.Fatalf("second mark paid should be a no-op")
	}

	got, err := repo.GetByID(order.ID)
	if err != nil || got == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if got.PaymentStatus != constants.PaymentStatusPaid || got.Status != constants.OrderStatusConfirmed {
		t.Fatalf("unexpected state: payment=%s status=%s", got.PaymentStatus, got.Status)
	}
	if got.PaymentTxnID == nil || *got.PaymentTxnID != "FT001" {
		t.Fatalf("txn id should be captured once, got %v", got.PaymentTxnID)
	}
	if got.ConfirmedAt == nil {
		t.Fatalf("confirmed_at should be set when pending order is paid")
	}
}

func TestOrderRepositoryMarkPaidKeepsAdvancedStatus(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewOrderRepository(db)
	order := createRepoTestOrder(t, db, "20260101120000SHIP01", 50000, time.Now())
	if err := db.Model(order).Update("status", constants.OrderStatusShipped).Error; err != nil {
		t.Fatalf("update status failed: %v", err)
	}

	ok, err := repo.MarkPaid(order.ID, "COD-1", time.Now())
	if err != nil || !ok {
		t.Fatalf("mark paid failed: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(order.ID)
	if got.Status != constants.OrderStatusShipped {
		t.Fatalf("status should stay shipped, got %s", got.Status)
	}
	if got.ConfirmedAt != nil {
		t.Fatalf("confirmed_at should stay empty for non-pending order")
	}
}

func TestOrderRepositoryGetByIDMissingReturnsNil(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewOrderRepository(db)
	got, err := repo.GetByID(999)
	if err != nil || got != nil {
		t.Fatalf("missing order should return nil,nil got %v %v", got, err)
	}
}

func TestOrderRepositoryUnpaidQueries(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	old := createRepoTestOrder(t, db, "20260101000000OLD001", 100000, now.Add(-48*time.Hour))
	recent := createRepoTestOrder(t, db, "20260101000000NEW001", 100000, now.Add(-time.Hour))
	newest := createRepoTestOrder(t, db, "20260101000000NEW002", 100000, now.Add(-time.Minute))
	cancelled := createRepoTestOrder(t, db, "20260101000000CAN001", 100000, now)
	if err := db.Model(cancelled).Update("status", constants.OrderStatusCancelled).Error; err != nil {
		t.Fatalf("cancel order failed: %v", err)
	}
	if _, err := repo.MarkPaid(newest.ID, "PAID-1", now); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	rows, err := repo.ListUnpaidByAmountSince(100000, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list by amount failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != recent.ID {
		t.Fatalf("expected only the recent unpaid order, got %+v", rows)
	}

	unpaid, err := repo.ListUnpaidRecent(10)
	if err != nil {
		t.Fatalf("list unpaid failed: %v", err)
	}
	if len(unpaid) != 3 || unpaid[0].ID != cancelled.ID || unpaid[2].ID != old.ID {
		t.Fatalf("unexpected unpaid ordering: %+v", unpaid)
	}

	byRef, err := repo.FindUnpaidByPaymentRef("go" + "new001")
	if err != nil || byRef == nil || byRef.ID != recent.ID {
		t.Fatalf("reference lookup should be case-insensitive, got %+v err=%v", byRef, err)
	}
	paidRef, err := repo.FindUnpaidByPaymentRef("GONEW002")
	if err != nil || paidRef != nil {
		t.Fatalf("paid order must not be returned by reference lookup")
	}
}

func TestOrderRepositoryTransitionStatusIsConditional(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewOrderRepository(db)
	order := createRepoTestOrder(t, db, "20260101000000TRN001", 1000, time.Now())

	ok, err := repo.TransitionStatus(order.ID, constants.OrderStatusConfirmed, constants.OrderStatusShipped, nil)
	if err != nil || ok {
		t.Fatalf("transition from wrong status should not apply, ok=%v err=%v", ok, err)
	}
	ok, err = repo.TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusCancelled, map[string]interface{}{
		"cancel_reason": "customer",
	})
	if err != nil || !ok {
		t.Fatalf("transition should apply, ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(order.ID)
	if got.Status != constants.OrderStatusCancelled || got.CancelReason != "customer" {
		t.Fatalf("unexpected order after transition: %+v", got)
	}
}

func TestOrderRepositoryListPages(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewOrderRepository(db)
	now := time.Now()
	for i := 0; i < 5; i++ {
		createRepoTestOrder(t, db, fmt.Sprintf("PL26010112000%dPAGE0%d", i, i), 1000, now)
	}

	orders, total, err := repo.List(OrderListFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 5 || len(orders) != 2 {
		t.Fatalf("want total 5 and 2 rows, got total=%d rows=%d", total, len(orders))
	}
	if orders[0].ID <= orders[1].ID {
		t.Fatalf("rows should be newest first: %d, %d", orders[0].ID, orders[1].ID)
	}

	orders, total, err = repo.List(OrderListFilter{Page: 1, PageSize: 10, Status: constants.OrderStatusDelivered})
	if err != nil || total != 0 || orders == nil || len(orders) != 0 {
		t.Fatalf("empty page should be a non-nil empty slice, got %v total=%d err=%v", orders, total, err)
	}
}
