package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"finpay/internal/model"

	"gorm.io/gorm"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// GetByRequestID 幂等前置检查用，未找到返回 (nil, nil)
func (r *TransferRepository) GetByRequestID(ctx context.Context, requestID string) (*model.TransferRecord, error) {
	var record model.TransferRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListEntriesByUserID 分页查询用户流水
func (r *TransferRepository) ListEntriesByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountEntry, int64, error) {
	var entries []*model.AccountEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountEntry{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

// ListCommittedSince 对账任务扫描窗口内已提交的转账
func (r *TransferRepository) ListCommittedSince(ctx context.Context, since time.Time, limit int) ([]*model.TransferRecord, error) {
	var records []*model.TransferRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", model.TransferStatusCommitted, since).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ListEntriesByTransferNo 取一笔转账的全部流水腿
func (r *TransferRepository) ListEntriesByTransferNo(ctx context.Context, transferNo string) ([]*model.AccountEntry, error) {
	var entries []*model.AccountEntry
	err := r.db.WithContext(ctx).
		Where("transfer_no = ?", transferNo).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// SumPeerFees 统计区间内转账沉淀的手续费总额（不入任何账户的那部分）
func (r *TransferRepository) SumPeerFees(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.TransferRecord{}).
		Select("COALESCE(SUM(fee), 0)").
		Where("fee_credited = ? AND created_at >= ?", false, since).
		Scan(&total).Error
	return total, err
}

// transferEventPayload 转账结果事件的消息体
func transferEventPayload(record *model.TransferRecord) string {
	payload := map[string]interface{}{
		"transfer_no":  record.TransferNo,
		"kind":         record.Kind,
		"from_user_id": record.FromUserID,
		"to_user_id":   record.ToUserID,
		"amount":       record.Amount,
		"fee":          record.Fee,
		"status":       record.Status,
		"committed_at": time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)
	return string(payloadBytes)
}
