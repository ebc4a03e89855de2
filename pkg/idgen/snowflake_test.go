package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateUnique(t *testing.T) {
	g := &Snowflake{workerID: 1}

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	idsCh := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				idsCh <- g.Generate()
			}
		}()
	}
	wg.Wait()
	close(idsCh)

	seen := make(map[int64]struct{}, goroutines*perGoroutine)
	for id := range idsCh {
		if _, dup := seen[id]; dup {
			t.Fatalf("重复ID: %d", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNumberPrefixes(t *testing.T) {
	tests := []struct {
		gen    func() string
		prefix string
	}{
		{GenerateTransferNo, "TRF"},
		{GenerateEntryNo, "ENT"},
		{GenerateCashInNo, "CIN"},
	}
	for _, tt := range tests {
		no := tt.gen()
		if !strings.HasPrefix(no, tt.prefix) {
			t.Errorf("no=%s want prefix %s", no, tt.prefix)
		}
		// 前缀3位 + 时间戳14位 + 序列8位
		if len(no) != 25 {
			t.Errorf("no=%s len=%d want=25", no, len(no))
		}
	}
}
