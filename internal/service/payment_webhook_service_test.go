package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"
)

func handleWebhook(f *ledgerFixture, body string) *BankWebhookResult {
	return f.webhook.Handle(context.Background(), BankWebhookInput{Body: []byte(body), ClientIP: "10.0.0.1"})
}

func TestBankWebhookMatchesReferenceAndIgnoresReplay(t *testing.T) {
	f := setupLedgerFixture(t)
	order := f.insertUnpaidOrder(t, "PL260101120000AAAAAA", "GOAB12", 372200, time.Now().Add(-time.Minute))
	body := `{"transactionId":"FT26001","amount":"372.200","description":"Thanh toán đơn GOAB12, số 372.200đ","index":"7"}`

	result := handleWebhook(f, body)
	if result.ResponseCode != constants.BankResponseCodeAccepted || result.Outcome != constants.WebhookOutcomeMatched {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Strategy != constants.MatchStrategyReference || result.OrderID != order.ID {
		t.Fatalf("want reference match on order %d, got %+v", order.ID, result)
	}
	if result.Index != "7" || result.ReferenceCode != "FT26001" {
		t.Fatalf("index/reference should be echoed, got %+v", result)
	}

	paid := f.reloadOrder(t, order.ID)
	if paid.PaymentStatus != constants.PaymentStatusPaid || paid.Status != constants.OrderStatusConfirmed {
		t.Fatalf("order should be paid and confirmed, got %s/%s", paid.PaymentStatus, paid.Status)
	}
	if paid.PaymentTxnID == nil || *paid.PaymentTxnID != "FT26001" || paid.PaidAt == nil {
		t.Fatalf("payment txn not captured: %+v", paid)
	}

	replay := handleWebhook(f, body)
	if replay.ResponseCode != constants.BankResponseCodeAccepted || replay.Outcome != constants.WebhookOutcomeDuplicate {
		t.Fatalf("replay should be accepted as duplicate, got %+v", replay)
	}
	if got := f.publisher.CountByType(constants.EventOrderPaid); got != 1 {
		t.Fatalf("want exactly one order.paid event, got %d", got)
	}

	logs, total, err := f.logRepo.List(repository.WebhookLogListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list webhook logs failed: %v", err)
	}
	if total != 2 || len(logs) != 2 {
		t.Fatalf("want 2 audit rows, got %d", total)
	}
}

func TestBankWebhookSecondTransferDoesNotRepayOrder(t *testing.T) {
	f := setupLedgerFixture(t)
	order := f.insertUnpaidOrder(t, "PL260101120000BBBBBB", "GOCD34", 100000, time.Now())

	first := handleWebhook(f, `{"transactionId":"FT1","amount":100000,"description":"GOCD34"}`)
	if first.Outcome != constants.WebhookOutcomeMatched {
		t.Fatalf("first transfer should match, got %+v", first)
	}
	second := handleWebhook(f, `{"transactionId":"FT2","amount":100000,"description":"GOCD34"}`)
	if second.ResponseCode != constants.BankResponseCodeAccepted || second.Outcome != constants.WebhookOutcomeUnmatched {
		t.Fatalf("second transfer should be accepted as unmatched, got %+v", second)
	}
	paid := f.reloadOrder(t, order.ID)
	if paid.PaymentTxnID == nil || *paid.PaymentTxnID != "FT1" {
		t.Fatalf("first txn must be kept, got %v", paid.PaymentTxnID)
	}
}

func TestBankWebhookAmountMismatchStillPays(t *testing.T) {
	f := setupLedgerFixture(t)
	order := f.insertUnpaidOrder(t, "PL260101120000CCCCCC", "GOEF56", 500000, time.Now())

	result := handleWebhook(f, `{"data":{"transactionId":"FT9","transferAmount":"450000","content":"ck GOEF56"}}`)
	if result.Outcome != constants.WebhookOutcomeMatched || result.OrderID != order.ID {
		t.Fatalf("mismatched amount should still match, got %+v", result)
	}
	if got := f.reloadOrder(t, order.ID).PaymentStatus; got != constants.PaymentStatusPaid {
		t.Fatalf("want paid, got %s", got)
	}
}

func TestBankWebhookUnmatchedIsLogged(t *testing.T) {
	f := setupLedgerFixture(t)
	f.insertUnpaidOrder(t, "PL260101120000DDDDDD", "GOGH78", 200000, time.Now())

	result := handleWebhook(f, `{"transactionId":"FT404","amount":"123","description":"tien nha"}`)
	if result.ResponseCode != constants.BankResponseCodeAccepted || result.Outcome != constants.WebhookOutcomeUnmatched {
		t.Fatalf("unexpected result: %+v", result)
	}
	logs, _, err := f.logRepo.List(repository.WebhookLogListFilter{Page: 1, PageSize: 10})
	if err != nil || len(logs) != 1 {
		t.Fatalf("want 1 audit row, got %d err=%v", len(logs), err)
	}
	if logs[0].Outcome != constants.WebhookOutcomeUnmatched || logs[0].MatchedOrderID != nil {
		t.Fatalf("unexpected audit row: %+v", logs[0])
	}
	if logs[0].TransactionID != "FT404" || logs[0].Amount != 123 {
		t.Fatalf("audit row should keep txn and amount: %+v", logs[0])
	}
}

func TestBankWebhookMalformedPayload(t *testing.T) {
	f := setupLedgerFixture(t)

	for _, body := range []string{
		`{`,
		``,
		`{"amount":"1000","description":"GOAB12"}`,
		`{"transactionId":"FT1","description":"GOAB12"}`,
		`{"transactionId":"FT1","amount":"-5","description":"GOAB12"}`,
		`{"transactionId":"FT1","amount":"1000"}`,
		`{"transactionId":"FT1","amount":"1000","description":"   "}`,
	} {
		result := handleWebhook(f, body)
		if result.ResponseCode != constants.BankResponseCodeMalformed || result.Outcome != constants.WebhookOutcomeMalformed {
			t.Fatalf("body %q want malformed, got %+v", body, result)
		}
	}
}

func TestBankWebhookWithoutDescriptionLeavesOrderUnpaid(t *testing.T) {
	f := setupLedgerFixture(t)
	order := f.insertUnpaidOrder(t, "PL260101120000XAB12X", "GOAB12", 372200, time.Now().Add(-time.Minute))

	result := handleWebhook(f, `{"transactionId":"FT900","amount":372200}`)
	if result.ResponseCode != constants.BankResponseCodeMalformed {
		t.Fatalf("missing description want malformed code, got %+v", result)
	}
	reloaded := f.reloadOrder(t, order.ID)
	if reloaded.PaymentStatus != constants.PaymentStatusPending || reloaded.PaymentTxnID != nil {
		t.Fatalf("order must stay unpaid, got payment_status=%s", reloaded.PaymentStatus)
	}
	if got := f.publisher.CountByType(constants.EventOrderPaid); got != 0 {
		t.Fatalf("no order.paid event expected, got %d", got)
	}
}

func TestParseBankWebhookPayloadAliases(t *testing.T) {
	payload, err := ParseBankWebhookPayload([]byte(`{"payload":{"txnId":"T-1","creditAmount":372200.0,"remark":" GOAB12 "},"requestIndex":3}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.TransactionID != "T-1" || payload.Amount != models.Money(372200) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Description != "GOAB12" || payload.Index != "3" {
		t.Fatalf("unexpected description/index: %+v", payload)
	}

	payload, err = ParseBankWebhookPayload([]byte(`{"id":"T-2","amount":"372.200","description":"x"}`))
	if err != nil || payload.Amount != 372200 {
		t.Fatalf("dotted thousands should parse, got %+v err=%v", payload, err)
	}

	payload, err = ParseBankWebhookPayload([]byte(`{"id":"T-4","amount":3.722e5,"description":"GOAB12"}`))
	if err != nil || payload.Amount != 372200 {
		t.Fatalf("exponent amount should parse, got %+v err=%v", payload, err)
	}

	_, err = ParseBankWebhookPayload([]byte(`{"id":"T-3","description":"GOAB12"}`))
	if !errors.Is(err, ErrWebhookMalformed) || !IsWebhookMalformed(err) {
		t.Fatalf("missing amount want ErrWebhookMalformed, got %v", err)
	}
}

func TestBankWebhookPaysReferredOrderWithoutCrediting(t *testing.T) {
	f := setupLedgerFixture(t)
	_, collabA, _, buyer := f.seedTwoLevelChain(t)
	order := f.checkout(t, buyer.ID, "COLLABA", 350000)

	result := handleWebhook(f, `{"transactionId":"FT777","amount":350000,"description":"`+order.PaymentRef+`"}`)
	if result.Outcome != constants.WebhookOutcomeMatched || result.OrderID != order.ID {
		t.Fatalf("checkout order should match by reference, got %+v", result)
	}
	// 支付不触发佣金入账
	if got := f.reloadUser(t, collabA.ID).WalletBalance; got != 0 {
		t.Fatalf("payment must not credit commission, got %d", got)
	}
	for _, row := range f.commissionsOf(t, order.ID) {
		if row.Status != constants.CommissionStatusPending {
			t.Fatalf("row should stay pending after payment, got %s", row.Status)
		}
	}
	if got := f.publisher.CountByType(constants.EventOrderStatusChanged); got != 1 {
		t.Fatalf("want status change event for pending->confirmed, got %d", got)
	}
}
