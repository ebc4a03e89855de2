package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock Redis 分布式锁
//
// 加锁：SET key value NX EX timeout
//   - NX 保证互斥，EX 防止持有者崩溃后死锁
//   - value 记录持有者标识，释放时校验，避免误删别人的锁
//
// 释放：Lua 脚本保证"校验 + 删除"的原子性
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，只删除自己持有的
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 转账锁：按转出账户维度互斥
// ============================================================================

// TransferLocker 实现 service.TransferLocker
//
// 按转出账户加锁而不是全局锁：不同用户的转账可以并发，
// 同一用户的并发提交被串行化（这正是双重提交防护需要的粒度）。
// 锁只保护"幂等检查 -> 落账"的窗口，余额一致性由存储层的原子转账保证。
type TransferLocker struct {
	client *redis.Client
}

func NewTransferLocker(client *redis.Client) *TransferLocker {
	return &TransferLocker{client: client}
}

func (t *TransferLocker) Acquire(ctx context.Context, userID int64, requestID string) (func(), error) {
	key := fmt.Sprintf("transfer:lock:user:%d", userID)
	// value 使用 requestID，便于追踪是哪个请求持有锁
	l := NewDistributedLock(t.client, key, requestID, 30*time.Second)

	if err := l.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, err
	}

	return func() {
		// 解锁失败不影响业务结果，锁会在过期后自动释放
		if err := l.Unlock(context.Background()); err != nil {
			log.Printf("[TransferLocker] 释放锁失败: key=%s, err=%v", key, err)
		}
	}, nil
}
