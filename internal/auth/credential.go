package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptCredential PIN 的哈希与校验能力
// 哈希值整体存储（含盐与代价因子），业务层只拿到不透明字符串
type BcryptCredential struct {
	cost int
}

func NewBcryptCredential() *BcryptCredential {
	return &BcryptCredential{cost: bcrypt.DefaultCost}
}

// Hash 生成 PIN 哈希
func (c *BcryptCredential) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), c.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify 校验 PIN 是否匹配存储的哈希
func (c *BcryptCredential) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
