package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"
)

func TestCheckoutTwoLevelCommissionFlow(t *testing.T) {
	f := setupLedgerFixture(t)
	staff, collabA, collabB, buyer := f.seedTwoLevelChain(t)

	orderA := f.checkout(t, buyer.ID, "collaba", 350000)
	orderB := f.checkout(t, buyer.ID, "COLLABB", 350000)

	if orderA.ReferrerID == nil || *orderA.ReferrerID != collabA.ID {
		t.Fatalf("order A should be attributed to collaborator A, got %v", orderA.ReferrerID)
	}
	if orderA.CommissionAmount != 42000 {
		t.Fatalf("order A commission total want 42000, got %d", orderA.CommissionAmount)
	}
	if orderA.CommissionStatus != constants.OrderCommissionStatusPending {
		t.Fatalf("order A commission status want pending, got %s", orderA.CommissionStatus)
	}
	if len(orderA.PaymentRef) != 8 || orderA.PaymentRef[:2] != "GO" {
		t.Fatalf("unexpected payment ref: %s", orderA.PaymentRef)
	}

	rows := f.commissionsOf(t, orderA.ID)
	if len(rows) != 2 {
		t.Fatalf("want 2 commission rows, got %d", len(rows))
	}
	byKind := map[string]models.CommissionTransaction{}
	for _, row := range rows {
		if row.Status != constants.CommissionStatusPending {
			t.Fatalf("new row should be pending, got %s", row.Status)
		}
		byKind[row.Kind] = row
	}
	direct := byKind[constants.CommissionKindCollaboratorDirect]
	if direct.PayeeID != collabA.ID || direct.CommissionAmount != 35000 {
		t.Fatalf("unexpected collaborator row: payee=%d amount=%d", direct.PayeeID, direct.CommissionAmount)
	}
	override := byKind[constants.CommissionKindStaffOverride]
	if override.PayeeID != staff.ID || override.CommissionAmount != 7000 {
		t.Fatalf("unexpected staff row: payee=%d amount=%d", override.PayeeID, override.CommissionAmount)
	}

	// 未送达前不入账
	if got := f.reloadUser(t, staff.ID).WalletBalance; got != 0 {
		t.Fatalf("staff balance should stay 0 before delivery, got %d", got)
	}

	f.setStatus(t, orderA.ID, "processing")
	f.setStatus(t, orderA.ID, "completed")
	f.setStatus(t, orderB.ID, "delivered")

	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 35000 {
		t.Fatalf("collaborator A balance want 35000, got %d", got)
	}
	if got := f.reloadUser(t, collabB.ID).WalletBalance; got != 35000 {
		t.Fatalf("collaborator B balance want 35000, got %d", got)
	}
	staffUser := f.reloadUser(t, staff.ID)
	if staffUser.WalletBalance != 14000 || staffUser.TotalCommission != 14000 {
		t.Fatalf("staff want balance/total 14000, got %d/%d", staffUser.WalletBalance, staffUser.TotalCommission)
	}
	for _, row := range f.commissionsOf(t, orderB.ID) {
		if row.Status != constants.CommissionStatusApproved || row.CreditedStatus == "" {
			t.Fatalf("delivered order row should be approved and credited, got %s/%q", row.Status, row.CreditedStatus)
		}
	}
	if got := f.reloadOrder(t, orderB.ID).CommissionStatus; got != constants.OrderCommissionStatusApproved {
		t.Fatalf("order commission status want approved, got %s", got)
	}
	if got := f.publisher.CountByType(constants.EventCommissionTransitioned); got != 4 {
		t.Fatalf("want 4 commission events, got %d", got)
	}
}

func TestCheckoutIgnoresSelfReferral(t *testing.T) {
	f := setupLedgerFixture(t)
	_, collabA, _, _ := f.seedTwoLevelChain(t)

	order := f.checkout(t, collabA.ID, "COLLABA", 200000)
	if order.ReferrerID != nil {
		t.Fatalf("self referral should not be attributed")
	}
	if order.CommissionAmount != 0 || order.CommissionStatus != constants.OrderCommissionStatusNone {
		t.Fatalf("self referral should not create commission, got %d/%s", order.CommissionAmount, order.CommissionStatus)
	}
	if rows := f.commissionsOf(t, order.ID); len(rows) != 0 {
		t.Fatalf("want no commission rows, got %d", len(rows))
	}
}

func TestCheckoutSkipsOverrideWhenStaffBuys(t *testing.T) {
	f := setupLedgerFixture(t)
	staff, collabA, _, _ := f.seedTwoLevelChain(t)

	order := f.checkout(t, staff.ID, "COLLABA", 100000)
	rows := f.commissionsOf(t, order.ID)
	if len(rows) != 1 {
		t.Fatalf("want only collaborator row, got %d rows", len(rows))
	}
	if rows[0].PayeeID != collabA.ID || rows[0].CommissionAmount != 10000 {
		t.Fatalf("unexpected row: payee=%d amount=%d", rows[0].PayeeID, rows[0].CommissionAmount)
	}
}

func TestCheckoutUnknownCodeCreatesPlainOrder(t *testing.T) {
	f := setupLedgerFixture(t)
	_, _, _, buyer := f.seedTwoLevelChain(t)

	order := f.checkout(t, buyer.ID, "NOPE", 100000)
	if order.ReferrerID != nil || order.CommissionAmount != 0 {
		t.Fatalf("unknown code should be ignored")
	}
	if len(order.OrderNo) != 20 || order.OrderNo[:2] != "PL" {
		t.Fatalf("unexpected order no: %s", order.OrderNo)
	}
}

func TestCheckoutRejectsInvalidInput(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()

	if _, err := f.orders.Checkout(ctx, CheckoutInput{UserID: 1}); !errors.Is(err, ErrInvalidOrderItem) {
		t.Fatalf("empty items want ErrInvalidOrderItem, got %v", err)
	}
	_, err := f.orders.Checkout(ctx, CheckoutInput{
		UserID:         1,
		Items:          []CheckoutItem{{ProductID: 1, Name: "Mũ", UnitPrice: 1000, Quantity: 1}},
		DiscountAmount: 5000,
	})
	if !errors.Is(err, ErrInvalidOrderAmount) {
		t.Fatalf("oversized discount want ErrInvalidOrderAmount, got %v", err)
	}
	_, err = f.orders.Checkout(ctx, CheckoutInput{
		UserID:        1,
		Items:         []CheckoutItem{{ProductID: 1, Name: "Mũ", UnitPrice: 1000, Quantity: 1}},
		PaymentMethod: "crypto",
	})
	if !errors.Is(err, ErrPaymentMethodInvalid) {
		t.Fatalf("unknown method want ErrPaymentMethodInvalid, got %v", err)
	}
}

func TestCancelRejectsPendingCommissions(t *testing.T) {
	f := setupLedgerFixture(t)
	staff, collabA, _, buyer := f.seedTwoLevelChain(t)
	order := f.checkout(t, buyer.ID, "COLLABA", 350000)

	f.setStatus(t, order.ID, "shipped")
	cancelled, err := f.orders.UpdateOrderStatus(context.Background(), OrderStatusUpdateInput{
		OrderID: order.ID,
		Label:   "canceled",
		Reason:  "customer request",
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.OrderStatusCancelled || cancelled.CommissionStatus != constants.OrderCommissionStatusCancelled {
		t.Fatalf("unexpected order state: %s/%s", cancelled.Status, cancelled.CommissionStatus)
	}
	for _, row := range f.commissionsOf(t, order.ID) {
		if row.Status != constants.CommissionStatusRejected {
			t.Fatalf("row %d want rejected, got %s", row.ID, row.Status)
		}
		if row.Reason != "customer request" {
			t.Fatalf("row %d reason not captured: %q", row.ID, row.Reason)
		}
	}
	if f.reloadUser(t, collabA.ID).WalletBalance != 0 || f.reloadUser(t, staff.ID).WalletBalance != 0 {
		t.Fatalf("cancel must not move balances")
	}
}

func TestOrderStatusFinalAndBackward(t *testing.T) {
	f := setupLedgerFixture(t)
	_, _, _, buyer := f.seedTwoLevelChain(t)
	ctx := context.Background()

	shipped := f.checkout(t, buyer.ID, "COLLABA", 100000)
	f.setStatus(t, shipped.ID, "shipped")
	_, err := f.orders.UpdateOrderStatus(ctx, OrderStatusUpdateInput{OrderID: shipped.ID, Label: "confirmed"})
	if !errors.Is(err, ErrOrderStatusBackward) {
		t.Fatalf("backward move want ErrOrderStatusBackward, got %v", err)
	}

	delivered := f.checkout(t, buyer.ID, "COLLABB", 100000)
	f.setStatus(t, delivered.ID, "delivered")
	_, err = f.orders.UpdateOrderStatus(ctx, OrderStatusUpdateInput{OrderID: delivered.ID, Label: "cancelled"})
	if !errors.Is(err, ErrOrderAlreadyFinal) {
		t.Fatalf("cancel after delivery want ErrOrderAlreadyFinal, got %v", err)
	}

	_, err = f.orders.UpdateOrderStatus(ctx, OrderStatusUpdateInput{OrderID: shipped.ID, Label: "refunded"})
	if !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("unknown label want ErrInvalidOrderStatus, got %v", err)
	}
	_, err = f.orders.UpdateOrderStatus(ctx, OrderStatusUpdateInput{OrderID: 9999, Label: "shipped"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order want ErrOrderNotFound, got %v", err)
	}

	// 同状态重复提交视为成功且不产生事件
	before := f.publisher.CountByType(constants.EventOrderStatusChanged)
	f.setStatus(t, shipped.ID, "shipping")
	if got := f.publisher.CountByType(constants.EventOrderStatusChanged); got != before {
		t.Fatalf("same status should not emit, before=%d after=%d", before, got)
	}
}

func TestDeliveryRepeatedDoesNotDoubleCredit(t *testing.T) {
	f := setupLedgerFixture(t)
	_, collabA, _, buyer := f.seedTwoLevelChain(t)
	order := f.checkout(t, buyer.ID, "COLLABA", 350000)

	f.setStatus(t, order.ID, "delivered")
	f.setStatus(t, order.ID, "completed")

	result, err := f.reconcile.Repair(context.Background(), 0)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if result.CreditedCommissions != 0 || result.ApprovedOrders != 0 {
		t.Fatalf("nothing to repair, got %+v", result)
	}
	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 35000 {
		t.Fatalf("balance want 35000, got %d", got)
	}
	var count int64
	if err := f.db.Model(&models.WalletTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count wallet txns failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("want 2 wallet transactions, got %d", count)
	}
}

func TestPurgeRules(t *testing.T) {
	f := setupLedgerFixture(t)
	_, _, _, buyer := f.seedTwoLevelChain(t)
	ctx := context.Background()

	active := f.checkout(t, buyer.ID, "COLLABA", 100000)
	if err := f.orders.Purge(ctx, active.ID); !errors.Is(err, ErrOrderNotCancelled) {
		t.Fatalf("purge active order want ErrOrderNotCancelled, got %v", err)
	}

	clean := f.checkout(t, buyer.ID, "COLLABA", 100000)
	f.setStatus(t, clean.ID, "cancelled")
	if err := f.orders.Purge(ctx, clean.ID); err != nil {
		t.Fatalf("purge cancelled order failed: %v", err)
	}
	if got, _ := f.orderRepo.GetByID(clean.ID); got != nil {
		t.Fatalf("purged order should be gone")
	}
	if rows := f.commissionsOf(t, clean.ID); len(rows) != 0 {
		t.Fatalf("purged order rows should be gone, got %d", len(rows))
	}

	// 先手工审核入账，再取消订单
	paidOut := f.checkout(t, buyer.ID, "COLLABB", 100000)
	ids := make([]uint, 0, 2)
	for _, row := range f.commissionsOf(t, paidOut.ID) {
		ids = append(ids, row.ID)
	}
	if _, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "approve", IDs: ids}); err != nil {
		t.Fatalf("bulk approve failed: %v", err)
	}
	f.setStatus(t, paidOut.ID, "cancelled")
	if err := f.orders.Purge(ctx, paidOut.ID); !errors.Is(err, ErrOrderHasCreditedIncome) {
		t.Fatalf("purge credited order want ErrOrderHasCreditedIncome, got %v", err)
	}

	report, err := f.reconcile.CancelledAfterPayout(0)
	if err != nil {
		t.Fatalf("cancelled after payout report failed: %v", err)
	}
	if len(report) != 1 || report[0].OrderID != paidOut.ID || report[0].CreditedAmount != 12000 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestMarkPaymentFailedKeepsPaidOrders(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()
	order := f.checkout(t, 0, "", 50000)

	failed, err := f.orders.MarkPaymentFailed(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if failed.PaymentStatus != constants.PaymentStatusFailed {
		t.Fatalf("want failed payment status, got %s", failed.PaymentStatus)
	}
	if _, err := f.orders.MarkPaymentFailed(ctx, 12345); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order want ErrOrderNotFound, got %v", err)
	}
}

func TestCancelExpiredOrders(t *testing.T) {
	f := setupLedgerFixture(t)
	_, _, _, buyer := f.seedTwoLevelChain(t)
	ctx := context.Background()

	stale := f.checkout(t, buyer.ID, "COLLABA", 100000)
	cod, err := f.orders.Checkout(ctx, CheckoutInput{
		UserID:        buyer.ID,
		PaymentMethod: "COD",
		Items:         []CheckoutItem{{ProductID: 2, Name: "Giày", UnitPrice: 80000, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("cod checkout failed: %v", err)
	}

	f.orders.expireMinutes = 30
	f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }

	cancelled, err := f.orders.CancelExpiredOrders(ctx, 50)
	if err != nil {
		t.Fatalf("cancel expired failed: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("want 1 expired order, got %d", cancelled)
	}
	got := f.reloadOrder(t, stale.ID)
	if got.Status != constants.OrderStatusCancelled || got.CancelReason != orderExpireReason {
		t.Fatalf("stale order should be cancelled by expiry: %s/%q", got.Status, got.CancelReason)
	}
	for _, row := range f.commissionsOf(t, stale.ID) {
		if row.Status != constants.CommissionStatusRejected {
			t.Fatalf("expired order rows should be rejected, got %s", row.Status)
		}
	}
	if f.reloadOrder(t, cod.ID).Status != constants.OrderStatusPending {
		t.Fatalf("cod order must not expire")
	}

	// 单笔超时任务对已取消订单是空操作
	again, err := f.orders.CancelExpiredOrder(ctx, stale.ID)
	if err != nil || again.Status != constants.OrderStatusCancelled {
		t.Fatalf("repeat expiry should be a no-op, got %+v err=%v", again, err)
	}
}
