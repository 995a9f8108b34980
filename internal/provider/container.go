package provider

import (
	"time"

	"github.com/payledger/internal/authz"
	"github.com/payledger/internal/cache"
	"github.com/payledger/internal/config"
	"github.com/payledger/internal/events"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/queue"
	"github.com/payledger/internal/repository"
	"github.com/payledger/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config         *config.Config
	QueueClient    *queue.Client
	EventPublisher events.Publisher
	UnitOfWork     repository.UnitOfWork

	// Repositories
	AdminRepo      repository.AdminRepository
	UserRepo       repository.UserRepository
	OrderRepo      repository.OrderRepository
	CommissionRepo repository.CommissionRepository
	WalletRepo     repository.WalletRepository
	WebhookLogRepo repository.WebhookLogRepository

	// Services
	AuthzService       *authz.Service
	AuthService        *service.AuthService
	EventDispatcher    *service.EventDispatcher
	WalletService      *service.WalletService
	ReferralService    *service.ReferralService
	CommissionService  *service.CommissionService
	OrderService       *service.OrderService
	PaymentMatcher     *service.PaymentMatcher
	BankWebhookService *service.BankWebhookService
	ReconcileService   *service.ReconcileService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:         cfg,
		QueueClient:    queueClient,
		EventPublisher: events.NewPublisher(&cfg.Kafka),
	}
	c.initRepositories(models.DB)
	c.initServices()
	return c
}

// NewContainerWithDB 使用指定数据库构建容器（测试与工具使用，不初始化授权）
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, publisher events.Publisher) *Container {
	queueClient, _ := queue.NewClient(nil)
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	c := &Container{
		Config:         cfg,
		QueueClient:    queueClient,
		EventPublisher: publisher,
	}
	c.initRepositories(db)
	c.initDomainServices()
	return c
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_failed", "error", err)
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			logger.Warnw("provider_close_publisher_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.UnitOfWork = repository.NewUnitOfWork(db)
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.WebhookLogRepo = repository.NewWebhookLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}
	c.initDomainServices()
}

func (c *Container) initDomainServices() {
	cfg := c.Config
	c.AuthService = service.NewAuthService(&cfg.JWT, c.AdminRepo)
	c.EventDispatcher = service.NewEventDispatcher(c.QueueClient, c.EventPublisher)
	c.WalletService = service.NewWalletService(c.WalletRepo, c.UserRepo)
	c.ReferralService = service.NewReferralService(c.UserRepo, cfg.Commission.DefaultRate, cfg.Commission.DefaultStaffRate)
	c.CommissionService = service.NewCommissionService(c.UnitOfWork, c.CommissionRepo, c.WalletService, c.EventDispatcher)
	c.OrderService = service.NewOrderService(
		c.UnitOfWork,
		c.OrderRepo,
		c.CommissionRepo,
		c.ReferralService,
		c.CommissionService,
		c.EventDispatcher,
		c.QueueClient,
		service.OrderServiceOptions{
			RefPrefix:     cfg.Payment.RefPrefix,
			ExpireMinutes: cfg.Order.PaymentExpireMinutes,
		},
	)
	c.PaymentMatcher = service.NewPaymentMatcher(c.OrderRepo, service.PaymentMatcherOptions{
		RefPrefix:       cfg.Payment.RefPrefix,
		SuffixScanLimit: cfg.Payment.SuffixScanLimit,
		AmountWindow:    time.Duration(cfg.Payment.AmountWindowHours) * time.Hour,
	})
	c.BankWebhookService = service.NewBankWebhookService(
		c.UnitOfWork,
		c.OrderRepo,
		c.WebhookLogRepo,
		c.PaymentMatcher,
		c.OrderService,
		service.BankWebhookOptions{
			LockTTL:       time.Duration(cfg.Payment.LockTTLSeconds) * time.Second,
			HandleTimeout: time.Duration(cfg.Payment.HandleTimeoutMilli) * time.Millisecond,
		},
	)
	c.ReconcileService = service.NewReconcileService(
		c.UnitOfWork,
		c.OrderRepo,
		c.CommissionRepo,
		c.WalletService,
		c.CommissionService,
		cfg.Commission.ReconcileBatchSize,
	)
}
