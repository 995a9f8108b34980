package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/queue"
	"github.com/payledger/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db          *gorm.DB
	publisher   *events.MemoryPublisher
	orderRepo   *repository.GormOrderRepository
	commRepo    *repository.GormCommissionRepository
	userRepo    *repository.GormUserRepository
	walletRepo  *repository.GormWalletRepository
	logRepo     *repository.GormWebhookLogRepository
	wallet      *WalletService
	referral    *ReferralService
	commissions *CommissionService
	orders      *OrderService
	matcher     *PaymentMatcher
	webhook     *BankWebhookService
	reconcile   *ReconcileService
}

func setupLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 共享内存库下单连接串行化事务
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("init queue client failed: %v", err)
	}
	f := &ledgerFixture{
		db:         db,
		publisher:  &events.MemoryPublisher{},
		orderRepo:  repository.NewOrderRepository(db),
		commRepo:   repository.NewCommissionRepository(db),
		userRepo:   repository.NewUserRepository(db),
		walletRepo: repository.NewWalletRepository(db),
		logRepo:    repository.NewWebhookLogRepository(db),
	}
	uow := repository.NewUnitOfWork(db)
	dispatcher := NewEventDispatcher(queueClient, f.publisher)
	f.wallet = NewWalletService(f.walletRepo, f.userRepo)
	f.referral = NewReferralService(f.userRepo, 10, 2)
	f.commissions = NewCommissionService(uow, f.commRepo, f.wallet, dispatcher)
	f.orders = NewOrderService(uow, f.orderRepo, f.commRepo, f.referral, f.commissions, dispatcher, queueClient, OrderServiceOptions{RefPrefix: "GO"})
	f.matcher = NewPaymentMatcher(f.orderRepo, PaymentMatcherOptions{RefPrefix: "GO"})
	f.webhook = NewBankWebhookService(uow, f.orderRepo, f.logRepo, f.matcher, f.orders, BankWebhookOptions{})
	f.reconcile = NewReconcileService(uow, f.orderRepo, f.commRepo, f.wallet, f.commissions, 100)
	return f
}

func (f *ledgerFixture) createUser(t *testing.T, email, code, level string, parentID *uint) *models.User {
	t.Helper()
	user := &models.User{
		Email:          email,
		Status:         constants.UserStatusActive,
		AffiliateLevel: level,
		ParentStaffID:  parentID,
	}
	if code != "" {
		referral := code
		user.ReferralCode = &referral
	}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("create user %s failed: %v", email, err)
	}
	return user
}

// seedTwoLevelChain 员工 + 两名合作者（10%）+ 买家，员工提成 2%
func (f *ledgerFixture) seedTwoLevelChain(t *testing.T) (staff, collabA, collabB, buyer *models.User) {
	t.Helper()
	staff = f.createUser(t, "staff@example.com", "STAFF01", constants.AffiliateLevelStaff, nil)
	collabA = f.createUser(t, "a@example.com", "COLLABA", constants.AffiliateLevelCollaborator, &staff.ID)
	collabB = f.createUser(t, "b@example.com", "COLLABB", constants.AffiliateLevelCollaborator, &staff.ID)
	buyer = f.createUser(t, "buyer@example.com", "", constants.AffiliateLevelNone, nil)
	return staff, collabA, collabB, buyer
}

func (f *ledgerFixture) checkout(t *testing.T, buyerID uint, code string, unitPrice models.Money) *models.Order {
	t.Helper()
	order, err := f.orders.Checkout(context.Background(), CheckoutInput{
		UserID:       buyerID,
		ReferralCode: code,
		Items: []CheckoutItem{
			{ProductID: 1, Name: "Áo thun", UnitPrice: unitPrice, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return order
}

func (f *ledgerFixture) setStatus(t *testing.T, orderID uint, label string) *models.Order {
	t.Helper()
	order, err := f.orders.UpdateOrderStatus(context.Background(), OrderStatusUpdateInput{OrderID: orderID, Label: label})
	if err != nil {
		t.Fatalf("update order %d to %s failed: %v", orderID, label, err)
	}
	return order
}

func (f *ledgerFixture) reloadUser(t *testing.T, id uint) *models.User {
	t.Helper()
	user, err := f.userRepo.GetByID(id)
	if err != nil || user == nil {
		t.Fatalf("reload user %d failed: %v", id, err)
	}
	return user
}

func (f *ledgerFixture) reloadOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	order, err := f.orderRepo.GetByID(id)
	if err != nil || order == nil {
		t.Fatalf("reload order %d failed: %v", id, err)
	}
	return order
}

func (f *ledgerFixture) commissionsOf(t *testing.T, orderID uint) []models.CommissionTransaction {
	t.Helper()
	rows, err := f.commRepo.ListByOrder(orderID)
	if err != nil {
		t.Fatalf("list commissions failed: %v", err)
	}
	return rows
}

// insertUnpaidOrder 直接写入指定订单号/参考码的待支付订单
func (f *ledgerFixture) insertUnpaidOrder(t *testing.T, orderNo, paymentRef string, total models.Money, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:          orderNo,
		PaymentRef:       paymentRef,
		Status:           constants.OrderStatusPending,
		PaymentStatus:    constants.PaymentStatusPending,
		PaymentMethod:    constants.PaymentMethodBankTransfer,
		ItemsSubtotal:    total,
		TotalAmount:      total,
		CommissionStatus: constants.OrderCommissionStatusNone,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("insert order failed: %v", err)
	}
	return order
}
