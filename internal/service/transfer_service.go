package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"finpay/internal/config"
	"finpay/internal/fee"
	"finpay/internal/model"
	"finpay/internal/repository"
	"finpay/pkg/idgen"
)

// AccountStore 账户存储能力，由 repository.AccountRepository 提供实现
// 注入而非内部构造，便于替换与测试
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetByContact(ctx context.Context, identifier string) (*model.Account, error)
	GetAgentByContact(ctx context.Context, contactNumber string) (*model.Account, error)
	AtomicTransfer(ctx context.Context, p *repository.AtomicTransferParams) error
}

// TransferStore 转账记录读取能力
type TransferStore interface {
	GetByRequestID(ctx context.Context, requestID string) (*model.TransferRecord, error)
}

// CredentialVerifier PIN 校验能力（不透明，业务层不关心哈希算法）
type CredentialVerifier interface {
	Verify(secret, hash string) bool
}

// TransferLocker 按转出账户维度的互斥，挡住同一用户的重复提交
// 返回的 release 必须在操作结束后调用
type TransferLocker interface {
	Acquire(ctx context.Context, userID int64, requestID string) (release func(), err error)
}

type TransferService struct {
	accounts  AccountStore
	transfers TransferStore
	locker    TransferLocker
	verifier  CredentialVerifier
	cfg       *config.Config
}

func NewTransferService(accounts AccountStore, transfers TransferStore, locker TransferLocker, verifier CredentialVerifier, cfg *config.Config) *TransferService {
	return &TransferService{
		accounts:  accounts,
		transfers: transfers,
		locker:    locker,
		verifier:  verifier,
		cfg:       cfg,
	}
}

// 金额不加 binding 校验：amount 的合法性判定（下限 / 正数）属于业务规则，
// 由服务层给出机器可读的失败类型
type SendMoneyRequest struct {
	RequestID        string `json:"request_id" binding:"required"`
	RecipientContact string `json:"recipient_contact" binding:"required"`
	Amount           int64  `json:"amount"`
	PIN              string `json:"pin" binding:"required"`
	SenderID         int64  `json:"-"` // 中间件从会话令牌解析
}

type CashOutRequest struct {
	RequestID    string `json:"request_id" binding:"required"`
	AgentContact string `json:"agent_contact" binding:"required"`
	Amount       int64  `json:"amount"`
	PIN          string `json:"pin" binding:"required"`
	UserID       int64  `json:"-"`
}

type TransferResponse struct {
	Status     string `json:"status"`
	TransferNo string `json:"transfer_no"`
	Amount     int64  `json:"amount"`
	Fee        int64  `json:"fee"`
	Message    string `json:"message,omitempty"`
}

func replayResponse(record *model.TransferRecord) *TransferResponse {
	return &TransferResponse{
		Status:     "ok",
		TransferNo: record.TransferNo,
		Amount:     record.Amount,
		Fee:        record.Fee,
		Message:    "重复请求，返回原转账结果",
	}
}

// SendMoney 用户间转账
//
// 【关键点】整个操作是无状态的 saga：认证 -> 校验 -> 解析账户 -> 算费 -> 原子落账，
// 只有两种终态（提交 / 拒绝），中途任何失败都不留痕。
// 乐观锁冲突时从头重试（含重新校验 PIN 与余额），有限次数内不暴露给调用方。
func (s *TransferService) SendMoney(ctx context.Context, req *SendMoneyRequest) (*TransferResponse, error) {
	// 幂等前置检查
	existing, err := s.transfers.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询转账记录失败: %w", err)
	}
	if existing != nil {
		return replayResponse(existing), nil
	}

	release, err := s.locker.Acquire(ctx, req.SenderID, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	// 拿到锁后再查一次，挡住锁等待期间已提交的重复请求
	existing, err = s.transfers.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询转账记录失败: %w", err)
	}
	if existing != nil {
		return replayResponse(existing), nil
	}

	for attempt := 0; attempt < s.cfg.Business.MaxRetryCount; attempt++ {
		resp, err := s.sendMoneyOnce(ctx, req)
		if errors.Is(err, repository.ErrOptimisticLock) {
			log.Printf("[TransferService] 转账乐观锁冲突，重试: requestID=%s, attempt=%d", req.RequestID, attempt+1)
			continue
		}
		return resp, err
	}

	return nil, ErrTransferFailed
}

func (s *TransferService) sendMoneyOnce(ctx context.Context, req *SendMoneyRequest) (*TransferResponse, error) {
	sender, err := s.accounts.GetByID(ctx, req.SenderID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, fmt.Errorf("查询转出账户失败: %w", err)
	}

	if !s.verifier.Verify(req.PIN, sender.PinHash) {
		return nil, ErrInvalidCredential
	}

	if req.Amount < s.cfg.Business.MinTransferAmount {
		return nil, ErrBelowMinimum
	}

	transferFee := fee.FeeFor(model.TransferKindPeer, req.Amount)
	totalDebit := req.Amount + transferFee

	// 前置余额检查只是快速失败，最终以原子落账时的守卫为准
	if sender.Balance < totalDebit {
		return nil, ErrInsufficientBalance
	}

	recipient, err := s.accounts.GetByContact(ctx, req.RecipientContact)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("查询收款账户失败: %w", err)
	}
	if recipient.ID == sender.ID {
		return nil, ErrSelfTransfer
	}

	transferNo := idgen.GenerateTransferNo()
	params := &repository.AtomicTransferParams{
		TransferNo:    transferNo,
		RequestID:     req.RequestID,
		Kind:          model.TransferKindPeer,
		DebitUserID:   sender.ID,
		CreditUserID:  recipient.ID,
		DebitAmount:   totalDebit,
		CreditAmount:  req.Amount, // 转账手续费不入收款方，直接沉淀
		Amount:        req.Amount,
		Fee:           transferFee,
		DebitEntryNo:  idgen.GenerateEntryNo(),
		CreditEntryNo: idgen.GenerateEntryNo(),
		Remark:        fmt.Sprintf("转账-%s", req.RecipientContact),
		OutboxTopic:   s.cfg.Kafka.Topic.TransferResult,
	}

	if err := s.accounts.AtomicTransfer(ctx, params); err != nil {
		switch {
		case errors.Is(err, repository.ErrBalanceNotEnough):
			// 输给了并发扣款
			return nil, ErrInsufficientBalance
		case errors.Is(err, repository.ErrOptimisticLock):
			return nil, err
		case errors.Is(err, repository.ErrDuplicateRequest):
			record, lookupErr := s.transfers.GetByRequestID(ctx, req.RequestID)
			if lookupErr != nil || record == nil {
				return nil, ErrTransferFailed
			}
			return replayResponse(record), nil
		default:
			return nil, fmt.Errorf("转账落账失败: %w", err)
		}
	}

	log.Printf("[TransferService] 转账成功: transferNo=%s, from=%d, to=%d, amount=%d, fee=%d",
		transferNo, sender.ID, recipient.ID, req.Amount, transferFee)

	return &TransferResponse{
		Status:     "ok",
		TransferNo: transferNo,
		Amount:     req.Amount,
		Fee:        transferFee,
	}, nil
}

// QueryByRequestID 按幂等ID查询转账终态
// 调用方超时后不能假定转账没有发生，用这个接口确认结果再决定是否重试
func (s *TransferService) QueryByRequestID(ctx context.Context, requestID string) (*TransferResponse, error) {
	record, err := s.transfers.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("查询转账记录失败: %w", err)
	}
	if record == nil {
		return nil, ErrTransferNotFound
	}
	return &TransferResponse{
		Status:     "ok",
		TransferNo: record.TransferNo,
		Amount:     record.Amount,
		Fee:        record.Fee,
	}, nil
}

// CashOut 通过代理提现
//
// 与转账的三处刻意差异：金额下限只要求正数；收款方必须是代理角色；
// 手续费默认作为佣金随本金一起入代理账户（business.credit_cashout_fee_to_agent 可关）。
func (s *TransferService) CashOut(ctx context.Context, req *CashOutRequest) (*TransferResponse, error) {
	existing, err := s.transfers.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询转账记录失败: %w", err)
	}
	if existing != nil {
		return replayResponse(existing), nil
	}

	release, err := s.locker.Acquire(ctx, req.UserID, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	existing, err = s.transfers.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询转账记录失败: %w", err)
	}
	if existing != nil {
		return replayResponse(existing), nil
	}

	for attempt := 0; attempt < s.cfg.Business.MaxRetryCount; attempt++ {
		resp, err := s.cashOutOnce(ctx, req)
		if errors.Is(err, repository.ErrOptimisticLock) {
			log.Printf("[TransferService] 提现乐观锁冲突，重试: requestID=%s, attempt=%d", req.RequestID, attempt+1)
			continue
		}
		return resp, err
	}

	return nil, ErrTransferFailed
}

func (s *TransferService) cashOutOnce(ctx context.Context, req *CashOutRequest) (*TransferResponse, error) {
	user, err := s.accounts.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, fmt.Errorf("查询转出账户失败: %w", err)
	}

	if !s.verifier.Verify(req.PIN, user.PinHash) {
		return nil, ErrInvalidCredential
	}

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	cashOutFee := fee.FeeFor(model.TransferKindCashOut, req.Amount)
	totalDebit := req.Amount + cashOutFee

	if user.Balance < totalDebit {
		return nil, ErrInsufficientBalance
	}

	agent, err := s.accounts.GetAgentByContact(ctx, req.AgentContact)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("查询代理账户失败: %w", err)
	}

	creditAmount := req.Amount
	if s.cfg.Business.CreditCashoutFeeToAgent {
		creditAmount += cashOutFee
	}

	transferNo := idgen.GenerateTransferNo()
	params := &repository.AtomicTransferParams{
		TransferNo:    transferNo,
		RequestID:     req.RequestID,
		Kind:          model.TransferKindCashOut,
		DebitUserID:   user.ID,
		CreditUserID:  agent.ID,
		DebitAmount:   totalDebit,
		CreditAmount:  creditAmount,
		Amount:        req.Amount,
		Fee:           cashOutFee,
		DebitEntryNo:  idgen.GenerateEntryNo(),
		CreditEntryNo: idgen.GenerateEntryNo(),
		Remark:        fmt.Sprintf("提现-%s", req.AgentContact),
		OutboxTopic:   s.cfg.Kafka.Topic.TransferResult,
	}

	if err := s.accounts.AtomicTransfer(ctx, params); err != nil {
		switch {
		case errors.Is(err, repository.ErrBalanceNotEnough):
			return nil, ErrInsufficientBalance
		case errors.Is(err, repository.ErrOptimisticLock):
			return nil, err
		case errors.Is(err, repository.ErrDuplicateRequest):
			record, lookupErr := s.transfers.GetByRequestID(ctx, req.RequestID)
			if lookupErr != nil || record == nil {
				return nil, ErrTransferFailed
			}
			return replayResponse(record), nil
		default:
			return nil, fmt.Errorf("提现落账失败: %w", err)
		}
	}

	log.Printf("[TransferService] 提现成功: transferNo=%s, user=%d, agent=%d, amount=%d, fee=%d",
		transferNo, user.ID, agent.ID, req.Amount, cashOutFee)

	return &TransferResponse{
		Status:     "ok",
		TransferNo: transferNo,
		Amount:     req.Amount,
		Fee:        cashOutFee,
	}, nil
}
