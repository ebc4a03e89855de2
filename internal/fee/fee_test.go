package fee

import (
	"testing"

	"finpay/internal/model"
)

func TestPeerFee(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{49, 0},
		{50, 0},
		{100, 0},  // 正好在阈值上，不收
		{101, 5},  // 超过阈值，固定 5
		{10000, 5},
	}
	for _, tt := range tests {
		if got := FeeFor(model.TransferKindPeer, tt.amount); got != tt.want {
			t.Errorf("FeeFor(PEER, %d)=%d want=%d", tt.amount, got, tt.want)
		}
	}
}

func TestCashOutFeeRounding(t *testing.T) {
	// 1.5% 四舍五入（0.5 进位），对账方依赖这条规则
	tests := []struct {
		amount int64
		want   int64
	}{
		{0, 0},
		{33, 0},    // 0.495 -> 0
		{34, 1},    // 0.51  -> 1
		{100, 2},   // 1.5   -> 2（半数进位）
		{200, 3},   // 3.0   -> 3
		{233, 3},   // 3.495 -> 3
		{1000, 15}, // 15.0  -> 15
		{1033, 15}, // 15.495 -> 15
		{1034, 16}, // 15.51  -> 16
	}
	for _, tt := range tests {
		if got := FeeFor(model.TransferKindCashOut, tt.amount); got != tt.want {
			t.Errorf("FeeFor(CASH_OUT, %d)=%d want=%d", tt.amount, got, tt.want)
		}
	}
}

func TestTotalDebit(t *testing.T) {
	if got := TotalDebit(model.TransferKindPeer, 100); got != 100 {
		t.Errorf("TotalDebit(PEER, 100)=%d want=100", got)
	}
	if got := TotalDebit(model.TransferKindPeer, 101); got != 106 {
		t.Errorf("TotalDebit(PEER, 101)=%d want=106", got)
	}
	if got := TotalDebit(model.TransferKindCashOut, 1000); got != 1015 {
		t.Errorf("TotalDebit(CASH_OUT, 1000)=%d want=1015", got)
	}
}
