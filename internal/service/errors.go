package service

import (
	"errors"
)

// 转账失败类型，每种都对应一个机器可读的响应码，由 handler 层完成映射
var (
	ErrBelowMinimum        = errors.New("低于最低转账金额")
	ErrInvalidAmount       = errors.New("转账金额不合法")
	ErrInvalidCredential   = errors.New("PIN 校验失败")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrRecipientNotFound   = errors.New("收款方不存在")
	ErrAgentNotFound       = errors.New("代理不存在")
	ErrSelfTransfer        = errors.New("不能给自己转账")
	ErrTransferFailed      = errors.New("转账失败，请稍后重试")
	ErrSenderNotFound      = errors.New("转出账户不存在")
	ErrTransferNotFound    = errors.New("转账记录不存在")
)
