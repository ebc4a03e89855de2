package model

import (
	"time"
)

const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

const (
	AccountStatusPending = "PENDING"
	AccountStatusActive  = "ACTIVE"
)

// ValidRole 校验注册时传入的角色
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAgent
}

// Account 用户账户表
// 手机号和邮箱全局唯一，都可以作为登录标识；余额是整个系统唯一的共享可变资源，
// 只允许通过 AccountRepository 的原子转账路径修改
type Account struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(64);not null" json:"name"`
	ContactNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"contact_number"` // 手机号
	Email         string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Role          string    `gorm:"type:varchar(16);not null" json:"role"`       // customer / agent，创建后不可变
	PinHash       string    `gorm:"type:varchar(128);not null" json:"-"`         // PIN 的 bcrypt 哈希，永不外泄
	Status        string    `gorm:"type:varchar(16);not null" json:"status"`     // PENDING / ACTIVE，激活由外部审批完成
	Balance       int64     `gorm:"not null;default:0" json:"balance"`           // 可用余额（最小货币单位）
	Version       int       `gorm:"not null;default:0" json:"version"`           // 乐观锁版本号
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
