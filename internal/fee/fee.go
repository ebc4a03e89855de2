// Package fee 手续费策略，纯函数，无状态无副作用。
//
// 【对账契约】提现手续费按 1.5% 计算，整数分位四舍五入（0.5 向远离零方向进位）：
//
//	fee = (amount*15 + 500) / 1000
//
// 调用方的对账逻辑依赖这条舍入规则，不得改为截断或银行家舍入。
package fee

import (
	"finpay/internal/model"
)

const (
	// PeerFeeThreshold 转账金额超过该值才收手续费
	PeerFeeThreshold = 100
	// PeerFlatFee 转账固定手续费
	PeerFlatFee = 5

	// 提现手续费率 1.5%，用整数运算表示为 15/1000
	cashOutFeeNumerator   = 15
	cashOutFeeDenominator = 1000
)

// FeeFor 计算指定转账类型的手续费
func FeeFor(kind string, amount int64) int64 {
	switch kind {
	case model.TransferKindPeer:
		if amount > PeerFeeThreshold {
			return PeerFlatFee
		}
		return 0
	case model.TransferKindCashOut:
		return (amount*cashOutFeeNumerator + cashOutFeeDenominator/2) / cashOutFeeDenominator
	default:
		return 0
	}
}

// TotalDebit 出账总额 = 本金 + 手续费
func TotalDebit(kind string, amount int64) int64 {
	return amount + FeeFor(kind, amount)
}
