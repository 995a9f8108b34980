package service

import (
	"context"
	"errors"
	"testing"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"
)

func commissionIDs(rows []models.CommissionTransaction) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func TestCommissionBulkApproveSkipsWrongState(t *testing.T) {
	f := setupLedgerFixture(t)
	staff, collabA, _, buyer := f.seedTwoLevelChain(t)
	order := f.checkout(t, buyer.ID, "COLLABA", 350000)
	rows := f.commissionsOf(t, order.ID)
	ctx := context.Background()

	// 先驳回员工提成，再批量审核全部（含不存在的 ID 与重复 ID）
	var overrideID uint
	for _, row := range rows {
		if row.Kind == constants.CommissionKindStaffOverride {
			overrideID = row.ID
		}
	}
	if _, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "reject", IDs: []uint{overrideID}, Reason: "dup"}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	ids := append(commissionIDs(rows), 9999, rows[0].ID)
	result, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: " Approve ", IDs: ids, AdminID: 7})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if result.Requested != 3 || result.Transitioned != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 35000 {
		t.Fatalf("collaborator balance want 35000, got %d", got)
	}
	if got := f.reloadUser(t, staff.ID).WalletBalance; got != 0 {
		t.Fatalf("rejected override must not credit, got %d", got)
	}

	row, err := f.commRepo.GetByID(overrideID)
	if err != nil || row == nil {
		t.Fatalf("reload row failed: %v", err)
	}
	if row.Status != constants.CommissionStatusRejected || row.Reason != "dup" {
		t.Fatalf("unexpected rejected row: %s/%q", row.Status, row.Reason)
	}
}

func TestCommissionPayAndCancelDoNotMoveMoney(t *testing.T) {
	f := setupLedgerFixture(t)
	_, collabA, _, buyer := f.seedTwoLevelChain(t)
	order := f.checkout(t, buyer.ID, "COLLABA", 350000)
	f.setStatus(t, order.ID, "delivered")
	ids := commissionIDs(f.commissionsOf(t, order.ID))
	ctx := context.Background()

	result, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "pay", IDs: ids[:1], PaymentInfo: "VCB 0123"})
	if err != nil || result.Transitioned != 1 {
		t.Fatalf("pay failed: %+v err=%v", result, err)
	}
	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 35000 {
		t.Fatalf("pay must not credit again, got %d", got)
	}

	// 已打款不能取消，已审核可以取消且不回收余额
	result, err = f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "cancel", IDs: ids, Reason: "fraud"})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if result.Transitioned != 1 || result.Skipped != 1 || result.SkippedIDs[0] != ids[0] {
		t.Fatalf("unexpected cancel result: %+v", result)
	}
	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 35000 {
		t.Fatalf("cancel must not claw back, got %d", got)
	}

	paid, err := f.commRepo.GetByID(ids[0])
	if err != nil || paid == nil {
		t.Fatalf("reload paid row failed: %v", err)
	}
	if paid.Status != constants.CommissionStatusPaid || paid.PaymentInfo != "VCB 0123" || paid.PaidAt == nil {
		t.Fatalf("unexpected paid row: %+v", paid)
	}
	if _, err := f.commissions.UpdateNote(paid.ID, " transferred "); err != nil {
		t.Fatalf("update note failed: %v", err)
	}
	paid, _ = f.commRepo.GetByID(ids[0])
	if paid.Note != "transferred" || paid.Status != constants.CommissionStatusPaid {
		t.Fatalf("note update should only touch note: %+v", paid)
	}
}

func TestCommissionBulkValidation(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()

	if _, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "refund", IDs: []uint{1}}); !errors.Is(err, ErrCommissionActionInvalid) {
		t.Fatalf("want ErrCommissionActionInvalid, got %v", err)
	}
	if _, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "approve", IDs: []uint{0, 0}}); !errors.Is(err, ErrCommissionIDsRequired) {
		t.Fatalf("want ErrCommissionIDsRequired, got %v", err)
	}
	ids := make([]uint, 501)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	if _, err := f.commissions.BulkAction(ctx, CommissionBulkInput{Action: "approve", IDs: ids}); !errors.Is(err, ErrCommissionTooManyIDs) {
		t.Fatalf("want ErrCommissionTooManyIDs, got %v", err)
	}
	if _, err := f.commissions.UpdateNote(424242, "x"); !errors.Is(err, ErrCommissionNotFound) {
		t.Fatalf("want ErrCommissionNotFound, got %v", err)
	}
	if !IsCommissionAction("PAY") || IsCommissionAction("refund") {
		t.Fatalf("IsCommissionAction mismatch")
	}
}

func TestReconcileRepairsUncreditedRows(t *testing.T) {
	f := setupLedgerFixture(t)
	staff, collabA, _, buyer := f.seedTwoLevelChain(t)
	ctx := context.Background()

	// 模拟历史数据：已审核但未入账
	approved := f.checkout(t, buyer.ID, "COLLABA", 350000)
	if err := f.db.Model(&models.CommissionTransaction{}).
		Where("order_id = ?", approved.ID).
		Update("status", constants.CommissionStatusApproved).Error; err != nil {
		t.Fatalf("seed approved rows failed: %v", err)
	}
	// 已送达但流水仍待审核
	delivered := f.checkout(t, buyer.ID, "COLLABB", 100000)
	if err := f.db.Model(&models.Order{}).Where("id = ?", delivered.ID).
		Update("status", constants.OrderStatusDelivered).Error; err != nil {
		t.Fatalf("seed delivered order failed: %v", err)
	}

	report, err := f.reconcile.Inspect(0)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if len(report.UncreditedCommissions) != 2 || len(report.DeliveredWithPending) != 1 {
		t.Fatalf("unexpected report: %d uncredited, %d delivered", len(report.UncreditedCommissions), len(report.DeliveredWithPending))
	}

	result, err := f.reconcile.Repair(ctx, 0)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if result.CreditedCommissions != 2 || result.ApprovedOrders != 1 || result.Failed != 0 {
		t.Fatalf("unexpected repair result: %+v", result)
	}
	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 35000 {
		t.Fatalf("collaborator A want 35000, got %d", got)
	}
	if got := f.reloadUser(t, staff.ID).WalletBalance; got != 9000 {
		t.Fatalf("staff want 7000+2000, got %d", got)
	}
	if got := f.reloadOrder(t, delivered.ID).CommissionStatus; got != constants.OrderCommissionStatusApproved {
		t.Fatalf("delivered order commission status want approved, got %s", got)
	}

	again, err := f.reconcile.Repair(ctx, 0)
	if err != nil {
		t.Fatalf("second repair failed: %v", err)
	}
	if again.CreditedCommissions != 0 || again.ApprovedOrders != 0 {
		t.Fatalf("second repair should be a no-op, got %+v", again)
	}
}
