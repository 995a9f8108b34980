package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/payledger/internal/config"
	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/provider"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type adminLedgerFixture struct {
	h       *Handler
	db      *gorm.DB
	router  *gin.Engine
	staff   *models.User
	collab  *models.User
	orderID uint
}

func setupAdminLedgerTest(t *testing.T) *adminLedgerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("commission_action", func(fl validator.FieldLevel) bool {
			return service.IsCommissionAction(fl.Field().String())
		})
	}

	dsn := fmt.Sprintf("file:admin_ledger_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Commission.DefaultRate = 10
	cfg.Commission.DefaultStaffRate = 2
	cfg.JWT.SecretKey = "admin-ledger-test-secret"
	h := &Handler{Container: provider.NewContainerWithDB(cfg, db, &events.MemoryPublisher{})}

	staffCode, collabCode := "STAFF01", "COLLAB01"
	staff := &models.User{Email: "staff@example.com", Status: constants.UserStatusActive, ReferralCode: &staffCode, AffiliateLevel: constants.AffiliateLevelStaff}
	if err := db.Create(staff).Error; err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	collab := &models.User{Email: "collab@example.com", Status: constants.UserStatusActive, ReferralCode: &collabCode, AffiliateLevel: constants.AffiliateLevelCollaborator, ParentStaffID: &staff.ID}
	if err := db.Create(collab).Error; err != nil {
		t.Fatalf("create collaborator failed: %v", err)
	}
	order, err := h.OrderService.Checkout(context.Background(), service.CheckoutInput{
		UserID:       99,
		ReferralCode: collabCode,
		Items:        []service.CheckoutItem{{ProductID: 1, Name: "Váy", UnitPrice: 350000, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("admin_id", uint(1))
		c.Next()
	})
	r.POST("/login", h.AdminLogin)
	r.GET("/orders/:id", h.AdminGetOrder)
	r.PATCH("/orders/:id/status", h.AdminUpdateOrderStatus)
	r.DELETE("/orders/:id", h.AdminPurgeOrder)
	r.GET("/commissions", h.AdminListCommissions)
	r.POST("/commissions/bulk", h.AdminBulkCommissions)
	r.GET("/reconciliation", h.AdminInspectReconciliation)
	r.GET("/affiliates/:id", h.AdminGetAffiliate)
	r.GET("/affiliates/:id/wallet-transactions", h.AdminListWalletTransactions)
	return &adminLedgerFixture{h: h, db: db, router: r, staff: staff, collab: collab, orderID: order.ID}
}

type adminEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func (f *adminLedgerFixture) do(t *testing.T, method, path, body string) adminEnvelope {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s http status want 200, got %d", method, path, w.Code)
	}
	var resp adminEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestAdminOrderStatusDeliveryCreditsWallet(t *testing.T) {
	f := setupAdminLedgerTest(t)

	resp := f.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d/status", f.orderID), `{"status":"completed"}`)
	if resp.StatusCode != 0 {
		t.Fatalf("status update failed: %+v", resp)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", f.orderID), "")
	var detail service.OrderDetail
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		t.Fatalf("decode detail failed: %v", err)
	}
	if detail.Order.Status != constants.OrderStatusDelivered || len(detail.Commissions) != 2 {
		t.Fatalf("unexpected detail: status=%s rows=%d", detail.Order.Status, len(detail.Commissions))
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/affiliates/%d", f.staff.ID), "")
	var staff models.User
	if err := json.Unmarshal(resp.Data, &staff); err != nil {
		t.Fatalf("decode affiliate failed: %v", err)
	}
	if staff.WalletBalance != 7000 {
		t.Fatalf("staff balance want 7000, got %d", staff.WalletBalance)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/affiliates/%d/wallet-transactions", f.collab.ID), "")
	var txns []models.WalletTransaction
	if err := json.Unmarshal(resp.Data, &txns); err != nil {
		t.Fatalf("decode wallet transactions failed: %v", err)
	}
	if len(txns) != 1 || txns[0].Amount != 35000 {
		t.Fatalf("unexpected wallet journal: %+v", txns)
	}

	// 已送达订单不可再取消
	resp = f.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d/status", f.orderID), `{"status":"cancelled"}`)
	if resp.StatusCode != 400 {
		t.Fatalf("cancel after delivery want 400, got %d", resp.StatusCode)
	}
}

func TestAdminBulkCommissions(t *testing.T) {
	f := setupAdminLedgerTest(t)

	var rows []models.CommissionTransaction
	resp := f.do(t, http.MethodGet, fmt.Sprintf("/commissions?order_id=%d", f.orderID), "")
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		t.Fatalf("decode commissions failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 commission rows, got %d", len(rows))
	}

	body := fmt.Sprintf(`{"action":"approve","transaction_ids":[%d,%d,%d]}`, rows[0].ID, rows[1].ID, 4242)
	resp = f.do(t, http.MethodPost, "/commissions/bulk", body)
	if resp.StatusCode != 0 {
		t.Fatalf("bulk approve failed: %+v", resp)
	}
	var result service.CommissionBulkResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decode bulk result failed: %v", err)
	}
	if result.Requested != 3 || result.Transitioned != 2 || result.Skipped != 1 {
		t.Fatalf("unexpected bulk result: %+v", result)
	}

	resp = f.do(t, http.MethodPost, "/commissions/bulk", `{"action":"refund","transaction_ids":[1]}`)
	if resp.StatusCode != 400 {
		t.Fatalf("unknown action want 400, got %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/commissions/bulk", `{"action":"pay","transaction_ids":[]}`)
	if resp.StatusCode != 400 {
		t.Fatalf("empty ids want 400, got %d", resp.StatusCode)
	}
}

func TestAdminPurgeAndReconcile(t *testing.T) {
	f := setupAdminLedgerTest(t)

	resp := f.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", f.orderID), "")
	if resp.StatusCode != 400 {
		t.Fatalf("purge active order want 400, got %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d/status", f.orderID), `{"status":"canceled","reason":"out of stock"}`)
	if resp.StatusCode != 0 {
		t.Fatalf("cancel failed: %+v", resp)
	}
	resp = f.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", f.orderID), "")
	if resp.StatusCode != 0 {
		t.Fatalf("purge cancelled order failed: %+v", resp)
	}
	resp = f.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", f.orderID), "")
	if resp.StatusCode != 404 {
		t.Fatalf("purged order want 404, got %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/reconciliation", "")
	var report service.ReconcileReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		t.Fatalf("decode report failed: %v", err)
	}
	if len(report.UncreditedCommissions) != 0 || len(report.DeliveredWithPending) != 0 {
		t.Fatalf("report should be empty, got %+v", report)
	}
}

func TestAdminLogin(t *testing.T) {
	f := setupAdminLedgerTest(t)
	hash, err := f.h.AuthService.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	if err := f.db.Create(&models.Admin{Username: "finance", PasswordHash: hash}).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/login", `{"username":"finance","password":"s3cret-pass"}`)
	if resp.StatusCode != 0 {
		t.Fatalf("login failed: %+v", resp)
	}
	var login LoginResponse
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		t.Fatalf("decode login failed: %v", err)
	}
	if login.Token == "" || login.Username != "finance" {
		t.Fatalf("unexpected login response: %+v", login)
	}
	state, err := f.h.AuthService.VerifyAdminToken(context.Background(), login.Token)
	if err != nil || state == nil || state.AdminID != login.AdminID {
		t.Fatalf("issued token should verify, state=%+v err=%v", state, err)
	}

	resp = f.do(t, http.MethodPost, "/login", `{"username":"finance","password":"wrong"}`)
	if resp.StatusCode != 401 {
		t.Fatalf("wrong password want 401, got %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/login", `{"username":"nobody","password":"x"}`)
	if resp.StatusCode != 401 {
		t.Fatalf("unknown admin want 401, got %d", resp.StatusCode)
	}
}
