package model

import (
	"time"
)

// ============================================================================
// 转账类型常量
// ============================================================================

const (
	TransferKindPeer    = "PEER"     // 用户间转账
	TransferKindCashOut = "CASH_OUT" // 通过代理提现
)

const (
	EntryTypeDebit  = "DEBIT"   // 出账
	EntryTypeCredit = "CREDIT"  // 入账
	EntryTypeCashIn = "CASH_IN" // 充值入账
)

// 转账只有两种终态：提交成功才落库，被拒绝的请求不产生任何记录
const (
	TransferStatusCommitted = "COMMITTED"
)

// ============================================================================
// 转账记录实体
// ============================================================================

// TransferRecord 转账记录表
// 每笔提交成功的转账一条记录，RequestID 全局唯一，是幂等的最后一道防线：
// 并发的重复请求绕过前置检查后，会在这里撞唯一索引，整个事务回滚
type TransferRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransferNo   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"`
	RequestID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，调用方生成
	Kind         string    `gorm:"type:varchar(16);not null" json:"kind"`                   // PEER / CASH_OUT
	FromUserID   int64     `gorm:"index;not null" json:"from_user_id"`
	ToUserID     int64     `gorm:"index;not null" json:"to_user_id"`
	Amount       int64     `gorm:"not null" json:"amount"`        // 本金
	Fee          int64     `gorm:"not null" json:"fee"`           // 手续费
	FeeCredited  bool      `gorm:"not null" json:"fee_credited"`  // 手续费是否入了收款方账户
	Status       string    `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TransferRecord) TableName() string {
	return "transfer_record"
}

// AccountEntry 账户流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联转账单号 —— 便于对账
// 3. 记录交易前后余额 —— 便于校验余额一致性
type AccountEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	TransferNo    string    `gorm:"type:varchar(64);index;not null" json:"transfer_no"` // 关联转账单号
	Amount        int64     `gorm:"not null" json:"amount"`                             // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(16);not null" json:"type"`              // DEBIT / CREDIT / CASH_IN
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountEntry) TableName() string {
	return "account_entry"
}
