package job

import (
	"context"
	"log"
	"time"

	"finpay/internal/fee"
	"finpay/internal/model"
	"finpay/internal/repository"

	"gorm.io/gorm"
)

// ReconcileJob 账务对账任务
//
// 周期性校验三条账务不变量：
//  1. 每笔已提交的转账必须恰好有两条流水腿，出账 = -(本金+手续费)，
//     入账 = 本金（转账）或按配置含手续费（提现）
//  2. 任何账户余额不得为负
//  3. 转账手续费沉淀总额可计算可追踪（转账手续费不入账导致的
//     全量余额收缩不是丢钱，是策略——这里把数字报出来）
//
// 对账只读不改，发现异常记日志告警，修复靠人工介入。
type ReconcileJob struct {
	accountRepo  *repository.AccountRepository
	transferRepo *repository.TransferRepository
	stopCh       chan struct{}
	interval     time.Duration
	window       time.Duration
	batchSize    int
}

func NewReconcileJob(db *gorm.DB) *ReconcileJob {
	return &ReconcileJob{
		accountRepo:  repository.NewAccountRepository(db),
		transferRepo: repository.NewTransferRepository(db),
		stopCh:       make(chan struct{}),
		interval:     30 * time.Second,
		window:       10 * time.Minute,
		batchSize:    200,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	log.Println("[ReconcileJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

func (j *ReconcileJob) runOnce(ctx context.Context) {
	j.checkNegativeBalances(ctx)
	j.checkTransferLegs(ctx)
	j.reportAbsorbedFees(ctx)
}

func (j *ReconcileJob) checkNegativeBalances(ctx context.Context) {
	accounts, err := j.accountRepo.ListNegativeBalances(ctx, j.batchSize)
	if err != nil {
		log.Printf("[ReconcileJob] 负余额扫描失败: %v", err)
		return
	}
	for _, account := range accounts {
		log.Printf("[ReconcileJob] 【告警】账户余额为负: userID=%d, balance=%d", account.ID, account.Balance)
	}
}

func (j *ReconcileJob) checkTransferLegs(ctx context.Context) {
	since := time.Now().Add(-j.window)
	records, err := j.transferRepo.ListCommittedSince(ctx, since, j.batchSize)
	if err != nil {
		log.Printf("[ReconcileJob] 转账记录扫描失败: %v", err)
		return
	}

	for _, record := range records {
		entries, err := j.transferRepo.ListEntriesByTransferNo(ctx, record.TransferNo)
		if err != nil {
			log.Printf("[ReconcileJob] 流水查询失败: transferNo=%s, err=%v", record.TransferNo, err)
			continue
		}
		j.checkOneTransfer(record, entries)
	}
}

func (j *ReconcileJob) checkOneTransfer(record *model.TransferRecord, entries []*model.AccountEntry) {
	if len(entries) != 2 {
		log.Printf("[ReconcileJob] 【告警】转账流水腿数异常: transferNo=%s, legs=%d", record.TransferNo, len(entries))
		return
	}

	var debit, credit *model.AccountEntry
	for _, entry := range entries {
		switch entry.Type {
		case model.EntryTypeDebit:
			debit = entry
		case model.EntryTypeCredit:
			credit = entry
		}
	}
	if debit == nil || credit == nil {
		log.Printf("[ReconcileJob] 【告警】转账缺少出账或入账腿: transferNo=%s", record.TransferNo)
		return
	}

	// 出账腿必须等于本金 + 策略手续费
	expectedFee := fee.FeeFor(record.Kind, record.Amount)
	if record.Fee != expectedFee {
		log.Printf("[ReconcileJob] 【告警】手续费与策略不符: transferNo=%s, recorded=%d, expected=%d",
			record.TransferNo, record.Fee, expectedFee)
	}
	if debit.Amount != -(record.Amount + record.Fee) {
		log.Printf("[ReconcileJob] 【告警】出账金额异常: transferNo=%s, debit=%d, amount=%d, fee=%d",
			record.TransferNo, debit.Amount, record.Amount, record.Fee)
	}

	expectedCredit := record.Amount
	if record.FeeCredited {
		expectedCredit += record.Fee
	}
	if credit.Amount != expectedCredit {
		log.Printf("[ReconcileJob] 【告警】入账金额异常: transferNo=%s, credit=%d, expected=%d",
			record.TransferNo, credit.Amount, expectedCredit)
	}

	// 流水自洽：前后余额差必须等于变动金额
	if debit.BalanceAfter-debit.BalanceBefore != debit.Amount ||
		credit.BalanceAfter-credit.BalanceBefore != credit.Amount {
		log.Printf("[ReconcileJob] 【告警】流水余额快照不自洽: transferNo=%s", record.TransferNo)
	}
}

func (j *ReconcileJob) reportAbsorbedFees(ctx context.Context) {
	since := time.Now().Add(-j.window)
	absorbed, err := j.transferRepo.SumPeerFees(ctx, since)
	if err != nil {
		log.Printf("[ReconcileJob] 沉淀手续费统计失败: %v", err)
		return
	}
	if absorbed > 0 {
		total, sumErr := j.accountRepo.SumBalances(ctx)
		if sumErr != nil {
			log.Printf("[ReconcileJob] 全量余额汇总失败: %v", sumErr)
			return
		}
		log.Printf("[ReconcileJob] 窗口内沉淀手续费: %d（未入任何账户，全量余额相应收缩），当前全量余额: %d", absorbed, total)
	}
}
