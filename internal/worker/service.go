package worker

import (
	"context"
	"errors"
	"time"

	"github.com/payledger/internal/config"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultReconcileInterval = 5 * time.Minute
	expireSweepInterval      = time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil {
		go s.runReconcileLoop(ctx)
		go s.runExpireSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runReconcileLoop 定时投递对账任务，同一周期内去重
func (s *Service) runReconcileLoop(ctx context.Context) {
	cfg := s.consumer.Config
	interval := defaultReconcileInterval
	batchSize := 0
	if cfg != nil {
		if cfg.Commission.ReconcileIntervalSecond > 0 {
			interval = time.Duration(cfg.Commission.ReconcileIntervalSecond) * time.Second
		}
		batchSize = cfg.Commission.ReconcileBatchSize
	}
	enqueue := func() {
		payload := queue.CommissionReconcilePayload{BatchSize: batchSize}
		if err := s.consumer.QueueClient.EnqueueCommissionReconcile(payload, interval); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Warnw("worker_reconcile_enqueue_failed", "error", err)
		}
	}
	enqueue()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

// runExpireSweepLoop 兜底扫描超时未支付订单（延时任务丢失时）
func (s *Service) runExpireSweepLoop(ctx context.Context) {
	if s.consumer.OrderService == nil {
		return
	}
	limit := 100
	if cfg := s.consumer.Config; cfg != nil && cfg.Order.ExpireScanLimit > 0 {
		limit = cfg.Order.ExpireScanLimit
	}
	runOnce := func() {
		cancelled, err := s.consumer.OrderService.CancelExpiredOrders(ctx, limit)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("worker_expire_sweep_failed", "error", err)
			return
		}
		if cancelled > 0 {
			logger.Infow("worker_expire_sweep_done", "cancelled", cancelled)
		}
	}
	runOnce()

	ticker := time.NewTicker(expireSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
