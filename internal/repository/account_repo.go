package repository

import (
	"context"
	"errors"

	"finpay/internal/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrAccountExists    = errors.New("手机号或邮箱已注册")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	ErrDuplicateRequest = errors.New("重复请求")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create 创建账户，手机号/邮箱唯一索引兜底并发注册
func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("contact_number = ? OR email = ?", account.ContactNumber, account.Email).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAccountExists
	}

	err = r.db.WithContext(ctx).Create(account).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAccountExists
	}
	return err
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByContact 按手机号或邮箱查找（登录标识二选一）
func (r *AccountRepository) GetByContact(ctx context.Context, identifier string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("contact_number = ? OR email = ?", identifier, identifier).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAgentByContact 按手机号查找代理账户，角色不匹配视同不存在
func (r *AccountRepository) GetAgentByContact(ctx context.Context, contactNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("contact_number = ? AND role = ?", contactNumber, model.RoleAgent).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// AtomicTransferParams 原子转账参数：两条腿 + 随事务落库的业务记录
type AtomicTransferParams struct {
	TransferNo    string
	RequestID     string
	Kind          string // model.TransferKindPeer / model.TransferKindCashOut
	DebitUserID   int64
	CreditUserID  int64
	DebitAmount   int64 // 本金 + 手续费
	CreditAmount  int64 // 入账金额（转账为本金，提现可能含手续费）
	Amount        int64 // 本金
	Fee           int64
	DebitEntryNo  string
	CreditEntryNo string
	Remark        string
	OutboxTopic   string // 留空则不写事务消息
}

// isLockConflict InnoDB 死锁（1213）或锁等待超时（1205）
// 对向转账（A→B 与 B→A 并发）会互相持锁，存储层随机选一个牺牲者回滚，
// 与乐观锁冲突同等对待，交给上层有限次重试
func isLockConflict(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

// AtomicTransfer 原子转账：两条腿的余额变动、两条流水、转账记录、事务消息
// 在同一个数据库事务内完成，要么全部生效，要么全部回滚。
//
// 【关键点】出账腿用条件更新做并发控制：
//
//	UPDATE account SET balance = balance - ?, version = version + 1
//	 WHERE id = ? AND balance >= ? AND version = ?
//
// RowsAffected == 0 时回查余额区分两种失败：
//   - 余额确实不够        => ErrBalanceNotEnough（并发扣款抢先了）
//   - 余额够但版本号变了  => ErrOptimisticLock（调用方有限次重试）
//
// 外部观察者永远看不到只扣不收或只收不扣的中间态，任何一步失败
// 都会让两边余额回到调用前的值。
func (r *AccountRepository) AtomicTransfer(ctx context.Context, p *AtomicTransferParams) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 事务内读取双方当前余额，流水要记录变动前后的值
		var debit model.Account
		if err := tx.Where("id = ?", p.DebitUserID).First(&debit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if debit.Balance < p.DebitAmount {
			return ErrBalanceNotEnough
		}

		// 入账腿没有版本号守卫，快照必须加行锁读：
		// 普通一致性读拿到的可能是并发入账提交前的旧余额，
		// 两笔并发入账会记出同一份 before/after，流水就对不上账了
		var credit model.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", p.CreditUserID).First(&credit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		// 出账腿：带余额与版本号守卫的条件更新
		result := tx.Model(&model.Account{}).
			Where("id = ? AND balance >= ? AND version = ?", p.DebitUserID, p.DebitAmount, debit.Version).
			Updates(map[string]interface{}{
				"balance": gorm.Expr("balance - ?", p.DebitAmount),
				"version": gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var latest model.Account
			if err := tx.Where("id = ?", p.DebitUserID).First(&latest).Error; err != nil {
				return err
			}
			if latest.Balance < p.DebitAmount {
				return ErrBalanceNotEnough
			}
			return ErrOptimisticLock
		}

		// 入账腿
		result = tx.Model(&model.Account{}).
			Where("id = ?", p.CreditUserID).
			Updates(map[string]interface{}{
				"balance": gorm.Expr("balance + ?", p.CreditAmount),
				"version": gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}

		// 转账记录，RequestID 唯一索引兜底幂等
		record := &model.TransferRecord{
			TransferNo:  p.TransferNo,
			RequestID:   p.RequestID,
			Kind:        p.Kind,
			FromUserID:  p.DebitUserID,
			ToUserID:    p.CreditUserID,
			Amount:      p.Amount,
			Fee:         p.Fee,
			FeeCredited: p.CreditAmount > p.Amount,
			Status:      model.TransferStatusCommitted,
		}
		if err := tx.Create(record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRequest
			}
			return err
		}

		// 双边流水
		entries := []*model.AccountEntry{
			{
				EntryNo:       p.DebitEntryNo,
				UserID:        p.DebitUserID,
				TransferNo:    p.TransferNo,
				Amount:        -p.DebitAmount,
				Type:          model.EntryTypeDebit,
				BalanceBefore: debit.Balance,
				BalanceAfter:  debit.Balance - p.DebitAmount,
				Remark:        p.Remark,
			},
			{
				EntryNo:       p.CreditEntryNo,
				UserID:        p.CreditUserID,
				TransferNo:    p.TransferNo,
				Amount:        p.CreditAmount,
				Type:          model.EntryTypeCredit,
				BalanceBefore: credit.Balance,
				BalanceAfter:  credit.Balance + p.CreditAmount,
				Remark:        p.Remark,
			},
		}
		for _, entry := range entries {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}

		if p.OutboxTopic != "" {
			msg := &model.OutboxMessage{
				MessageKey: p.TransferNo,
				Topic:      p.OutboxTopic,
				Payload:    transferEventPayload(record),
				Status:     model.OutboxStatusPending,
			}
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if isLockConflict(err) {
		return ErrOptimisticLock
	}
	return err
}

// CreditWithEntry 单边入账（充值），余额变动与流水同事务落库
func (r *AccountRepository) CreditWithEntry(ctx context.Context, userID, amount int64, transferNo, entryNo, remark string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 同样加行锁读，保证流水快照与余额变动串行化
		var account model.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		result := tx.Model(&model.Account{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"balance": gorm.Expr("balance + ?", amount),
				"version": gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}

		entry := &model.AccountEntry{
			EntryNo:       entryNo,
			UserID:        userID,
			TransferNo:    transferNo,
			Amount:        amount,
			Type:          model.EntryTypeCashIn,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + amount,
			Remark:        remark,
		}
		return tx.Create(entry).Error
	})
}

// SumBalances 全量余额汇总，对账任务使用
func (r *AccountRepository) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	return total, err
}

// ListNegativeBalances 扫描负余额账户，正常情况下永远为空
func (r *AccountRepository) ListNegativeBalances(ctx context.Context, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("balance < 0").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
