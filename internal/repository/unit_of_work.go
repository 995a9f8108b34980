package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories 绑定同一事务的仓储集合
type Repositories struct {
	Tx          *gorm.DB
	Orders      *GormOrderRepository
	Commissions *GormCommissionRepository
	Users       *GormUserRepository
	Wallets     *GormWalletRepository
}

// UnitOfWork 多表写入的事务边界
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos *Repositories) error) error
}

// GormUnitOfWork 基于 gorm 事务的实现
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork 创建事务单元
func NewUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Do 在同一事务内执行 fn，返回错误即回滚
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(repos *Repositories) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(tx *gorm.DB) *Repositories {
	return &Repositories{
		Tx:          tx,
		Orders:      NewOrderRepository(tx),
		Commissions: NewCommissionRepository(tx),
		Users:       NewUserRepository(tx),
		Wallets:     NewWalletRepository(tx),
	}
}
