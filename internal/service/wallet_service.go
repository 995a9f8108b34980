package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/metrics"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"
)

// WalletService 推广人钱包账本，唯一允许写余额与累计佣金的入口
type WalletService struct {
	walletRepo repository.WalletRepository
	userRepo   repository.UserRepository
}

// NewWalletService 创建钱包服务
func NewWalletService(walletRepo repository.WalletRepository, userRepo repository.UserRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo, userRepo: userRepo}
}

// WalletCreditInput 事务内入账输入
type WalletCreditInput struct {
	UserID       uint
	Amount       models.Money
	Reference    string
	CommissionID *uint
	OrderID      *uint
	Remark       string
}

// CreditInTx 在调用方事务内入账；相同引用重复调用返回已有流水且不改余额
func (s *WalletService) CreditInTx(repos *repository.Repositories, input WalletCreditInput) (*models.WalletTransaction, bool, error) {
	if repos == nil {
		return nil, false, fmt.Errorf("wallet credit requires a transaction")
	}
	if input.UserID == 0 {
		return nil, false, ErrWalletUserNotFound
	}
	if input.Amount <= 0 {
		return nil, false, ErrWalletAmountInvalid
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, false, ErrWalletTransactionCreateFailed
	}

	existing, err := repos.Wallets.GetTransactionByReference(reference)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	user, err := repos.Users.GetByIDForUpdate(input.UserID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, ErrWalletUserNotFound
	}

	now := time.Now()
	txn := &models.WalletTransaction{
		UserID:        input.UserID,
		Type:          constants.WalletTxnTypeCommissionCredit,
		Amount:        input.Amount,
		BalanceBefore: user.WalletBalance,
		BalanceAfter:  user.WalletBalance + input.Amount,
		CommissionID:  input.CommissionID,
		OrderID:       input.OrderID,
		Reference:     reference,
		Remark:        strings.TrimSpace(input.Remark),
		CreatedAt:     now,
	}
	if err := repos.Wallets.CreateTransaction(txn); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, false, nil
		}
		return nil, false, ErrWalletTransactionCreateFailed
	}
	ok, err := repos.Users.IncrementBalance(input.UserID, input.Amount)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrWalletUserNotFound
	}

	metrics.WalletCreditsTotal.Inc()
	metrics.WalletCreditedAmount.Add(float64(input.Amount.Int64()))
	logger.Infow("wallet_credited",
		"user_id", input.UserID,
		"amount", input.Amount.Int64(),
		"balance_after", txn.BalanceAfter.Int64(),
		"reference", reference,
	)
	return txn, true, nil
}

// CreditCommissionInTx 对单条佣金流水执行一次性入账：先抢占标记，再写流水与余额
func (s *WalletService) CreditCommissionInTx(repos *repository.Repositories, row *models.CommissionTransaction, stage string, at time.Time) (bool, error) {
	if row == nil || row.CommissionAmount <= 0 {
		return false, nil
	}
	marked, err := repos.Commissions.MarkCredited(row.ID, stage, at)
	if err != nil {
		return false, err
	}
	if !marked {
		return false, nil
	}
	commissionID := row.ID
	orderID := row.OrderID
	_, credited, err := s.CreditInTx(repos, WalletCreditInput{
		UserID:       row.PayeeID,
		Amount:       row.CommissionAmount,
		Reference:    buildCommissionCreditReference(row.ID, stage),
		CommissionID: &commissionID,
		OrderID:      &orderID,
		Remark:       fmt.Sprintf("佣金入账 %s", row.Kind),
	})
	if err != nil {
		return false, err
	}
	return credited, nil
}

// ListTransactions 查询入账流水
func (s *WalletService) ListTransactions(filter repository.WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	return s.walletRepo.ListTransactions(filter)
}

// GetAffiliate 获取推广人（含余额）
func (s *WalletService) GetAffiliate(userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAffiliateNotFound
	}
	return user, nil
}

func buildCommissionCreditReference(commissionID uint, stage string) string {
	return fmt.Sprintf("commission:%d:%s", commissionID, stage)
}
