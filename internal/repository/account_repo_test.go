package repository

import (
	"context"
	"errors"
	"testing"

	"finpay/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("创建 sqlmock 失败: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开 gorm 连接失败: %v", err)
	}
	return db, mock
}

func accountRows(id, balance, version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "balance", "version"}).AddRow(id, balance, version)
}

func transferParams() *AtomicTransferParams {
	return &AtomicTransferParams{
		TransferNo:    "TRF20240101120000000000001",
		RequestID:     "req-1",
		Kind:          model.TransferKindPeer,
		DebitUserID:   1,
		CreditUserID:  2,
		DebitAmount:   105,
		CreditAmount:  100,
		Amount:        100,
		Fee:           5,
		DebitEntryNo:  "ENT20240101120000000000001",
		CreditEntryNo: "ENT20240101120000000000002",
		Remark:        "转账-0172",
	}
}

const (
	selectAccountSQL   = "SELECT \\* FROM `account` WHERE id = \\?"
	selectForUpdateSQL = "SELECT \\* FROM `account` WHERE id = \\? .*FOR UPDATE"
	updateAccountSQL   = "UPDATE `account` SET"
	insertTransferSQL  = "INSERT INTO `transfer_record`"
	insertEntrySQL     = "INSERT INTO `account_entry`"
	insertOutboxSQL    = "INSERT INTO `outbox_message`"
)

// 成功路径：出账腿条件更新、入账腿、转账记录、双边流水、事务消息
// 在同一个事务里全部落库。入账方的快照读必须带行锁，否则并发入账
// 会记出相同的 before/after。
func TestAtomicTransferCommit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	p := transferParams()
	p.OutboxTopic = "transfer_result"

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 3))
	mock.ExpectQuery(selectForUpdateSQL).WillReturnRows(accountRows(2, 200, 7))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTransferSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertEntrySQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertEntrySQL).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(insertOutboxSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.AtomicTransfer(context.Background(), p); err != nil {
		t.Fatalf("期望转账成功, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 事务内首次读到的余额就不够，直接回滚
func TestAtomicTransferInsufficientBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 50, 3))
	mock.ExpectRollback()

	err := repo.AtomicTransfer(context.Background(), transferParams())
	if !errors.Is(err, ErrBalanceNotEnough) {
		t.Fatalf("期望 ErrBalanceNotEnough, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 条件更新 RowsAffected == 0 且回查余额不够：并发扣款抢先了
func TestAtomicTransferGuardInsufficient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 3))
	mock.ExpectQuery(selectForUpdateSQL).WillReturnRows(accountRows(2, 200, 7))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 50, 9))
	mock.ExpectRollback()

	err := repo.AtomicTransfer(context.Background(), transferParams())
	if !errors.Is(err, ErrBalanceNotEnough) {
		t.Fatalf("期望 ErrBalanceNotEnough, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 条件更新 RowsAffected == 0 但回查余额仍然够：版本号冲突，可重试
func TestAtomicTransferVersionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 3))
	mock.ExpectQuery(selectForUpdateSQL).WillReturnRows(accountRows(2, 200, 7))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 9))
	mock.ExpectRollback()

	err := repo.AtomicTransfer(context.Background(), transferParams())
	if !errors.Is(err, ErrOptimisticLock) {
		t.Fatalf("期望 ErrOptimisticLock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 对向转账互相持锁，InnoDB 选一个事务做死锁牺牲者（错误码 1213）。
// 每用户锁挡不住这种情况（两边的转出方不同），必须映射成
// ErrOptimisticLock 让上层有限次重试，而不是当系统错误抛出去。
func TestAtomicTransferDeadlockRetriable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 3))
	mock.ExpectQuery(selectForUpdateSQL).WillReturnRows(accountRows(2, 200, 7))
	mock.ExpectExec(updateAccountSQL).WillReturnError(&mysql.MySQLError{
		Number:  1213,
		Message: "Deadlock found when trying to get lock; try restarting transaction",
	})
	mock.ExpectRollback()

	err := repo.AtomicTransfer(context.Background(), transferParams())
	if !errors.Is(err, ErrOptimisticLock) {
		t.Fatalf("期望死锁映射为 ErrOptimisticLock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 锁等待超时（1205）与死锁同等对待
func TestAtomicTransferLockWaitTimeoutRetriable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 3))
	mock.ExpectQuery(selectForUpdateSQL).WillReturnError(&mysql.MySQLError{
		Number:  1205,
		Message: "Lock wait timeout exceeded; try restarting transaction",
	})
	mock.ExpectRollback()

	err := repo.AtomicTransfer(context.Background(), transferParams())
	if !errors.Is(err, ErrOptimisticLock) {
		t.Fatalf("期望锁等待超时映射为 ErrOptimisticLock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 绕过前置检查的并发重复请求撞 request_id 唯一索引（错误码 1062），
// 整个事务回滚并返回 ErrDuplicateRequest
func TestAtomicTransferDuplicateRequest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccountSQL).WillReturnRows(accountRows(1, 500, 3))
	mock.ExpectQuery(selectForUpdateSQL).WillReturnRows(accountRows(2, 200, 7))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTransferSQL).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'req-1' for key 'transfer_record.request_id'",
	})
	mock.ExpectRollback()

	err := repo.AtomicTransfer(context.Background(), transferParams())
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("期望 ErrDuplicateRequest, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}

// 充值同样要求行锁快照读，余额变动与流水同事务
func TestCreditWithEntryLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdateSQL).WillReturnRows(accountRows(1, 100, 2))
	mock.ExpectExec(updateAccountSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEntrySQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreditWithEntry(context.Background(), 1, 200,
		"CIN20240101120000000000001", "ENT20240101120000000000003", "充值")
	if err != nil {
		t.Fatalf("期望充值成功, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未全部满足: %v", err)
	}
}
