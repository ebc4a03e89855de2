package service

import (
	"context"
	"errors"
	"fmt"

	"finpay/internal/model"
	"finpay/internal/repository"
	"finpay/pkg/idgen"
)

// ProfileStore 余额与充值所需的账户存储能力
type ProfileStore interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	CreditWithEntry(ctx context.Context, userID, amount int64, transferNo, entryNo, remark string) error
}

// EntryStore 流水查询能力
type EntryStore interface {
	ListEntriesByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountEntry, int64, error)
}

type AccountService struct {
	accounts ProfileStore
	entries  EntryStore
}

func NewAccountService(accounts ProfileStore, entries EntryStore) *AccountService {
	return &AccountService{
		accounts: accounts,
		entries:  entries,
	}
}

func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// CashIn 充值入账（简化版，实际应走支付渠道回调）
func (s *AccountService) CashIn(ctx context.Context, userID, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	cashInNo := idgen.GenerateCashInNo()
	err := s.accounts.CreditWithEntry(ctx, userID, amount, cashInNo, idgen.GenerateEntryNo(), "充值")
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("充值入账失败: %w", err)
	}
	return cashInNo, nil
}

func (s *AccountService) ListEntries(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountEntry, int64, error) {
	return s.entries.ListEntriesByUserID(ctx, userID, page, pageSize)
}
