package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/payledger/internal/authz"
	"github.com/payledger/internal/cache"
	"github.com/payledger/internal/config"
	adminhandlers "github.com/payledger/internal/http/handlers/admin"
	publichandlers "github.com/payledger/internal/http/handlers/public"
	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/provider"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	registerValidators()
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pl"
	}
	redisClient := cache.Client()
	webhookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:bank_webhook", redisPrefix),
		WindowSeconds: cfg.Webhook.RateLimitWindowSeconds,
		MaxRequests:   cfg.Webhook.RateLimitMaxRequests,
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   30,
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: 300,
		MaxRequests:   10,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	if cfg.Metrics.Enabled {
		r.Use(metrics.GinMiddleware())
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, metrics.Handler())
	}

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/orders", RateLimitMiddleware(redisClient, checkoutRule, KeyByIPAndJSONField("user_id")), publicHandler.Checkout)
		apiV1.GET("/orders/:order_no", publicHandler.GetOrderPayment)
		apiV1.GET("/ref/:code", publicHandler.ReferralLanding)

		payments := apiV1.Group("/payments")
		{
			payments.POST("/bank/webhook",
				BodyLimitMiddleware(int64(cfg.Webhook.MaxBodyBytes)),
				RateLimitMiddleware(redisClient, webhookRule, KeyByIP),
				publicHandler.BankWebhook,
			)
		}

		apiV1.POST("/admin/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

		admin := apiV1.Group("/admin")
		admin.Use(AdminAuthMiddleware(c.AuthService))
		{
			authorized := admin.Group("")
			authorized.Use(AdminRBACMiddleware(c.AuthzService))
			{
				// 订单
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.GET("/orders/:id", adminHandler.AdminGetOrder)
				authorized.PATCH("/orders/:id/status", adminHandler.AdminUpdateOrderStatus)
				authorized.DELETE("/orders/:id", adminHandler.AdminPurgeOrder)

				// 佣金
				authorized.GET("/commissions", adminHandler.AdminListCommissions)
				authorized.POST("/commissions/bulk", adminHandler.AdminBulkCommissions)
				authorized.PATCH("/commissions/:id/note", adminHandler.AdminUpdateCommissionNote)

				// 推广人与钱包
				authorized.GET("/affiliates/:id", adminHandler.AdminGetAffiliate)
				authorized.PUT("/affiliates/:id", adminHandler.AdminUpdateAffiliate)
				authorized.GET("/affiliates/:id/wallet-transactions", adminHandler.AdminListWalletTransactions)

				// 对账与审计
				authorized.GET("/reconciliation", adminHandler.AdminInspectReconciliation)
				authorized.POST("/reconciliation", adminHandler.AdminRunReconciliation)
				authorized.GET("/reports/cancelled-after-payout", adminHandler.AdminCancelledAfterPayout)
				authorized.GET("/webhook-logs", adminHandler.AdminListWebhookLogs)
				authorized.GET("/permissions", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
			}
		}
	}

	r.GET("/health", publicHandler.Health)

	return r
}

// registerValidators 注册自定义校验规则
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	if err := v.RegisterValidation("commission_action", func(fl validator.FieldLevel) bool {
		return service.IsCommissionAction(strings.ToLower(strings.TrimSpace(fl.Field().String())))
	}); err != nil {
		logger.Warnw("router_register_validator_failed", "tag", "commission_action", "error", err)
	}
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") || item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})
	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
