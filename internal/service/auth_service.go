package service

import (
	"context"
	"errors"
	"fmt"

	"finpay/internal/model"
	"finpay/internal/repository"
)

var (
	ErrUserExists   = errors.New("手机号或邮箱已注册")
	ErrInvalidRole  = errors.New("角色不合法")
	ErrLoginFailed  = errors.New("账户或 PIN 错误")
	ErrUserNotFound = errors.New("账户不存在")
)

// RegistrarStore 注册所需的账户存储能力
type RegistrarStore interface {
	Create(ctx context.Context, account *model.Account) error
	GetByContact(ctx context.Context, identifier string) (*model.Account, error)
}

// CredentialHasher PIN 哈希能力
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// TokenIssuer 会话令牌签发能力
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

type AuthService struct {
	accounts RegistrarStore
	hasher   CredentialHasher
	tokens   TokenIssuer
}

func NewAuthService(accounts RegistrarStore, hasher CredentialHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
	}
}

type RegisterRequest struct {
	Name          string `json:"name" binding:"required"`
	PIN           string `json:"pin" binding:"required"`
	Role          string `json:"role" binding:"required"`
	ContactNumber string `json:"number" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
}

// Register 注册账户：待审批状态，零余额，PIN 只存哈希
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*model.Account, error) {
	if !model.ValidRole(req.Role) {
		return nil, ErrInvalidRole
	}

	pinHash, err := s.hasher.Hash(req.PIN)
	if err != nil {
		return nil, fmt.Errorf("PIN 哈希失败: %w", err)
	}

	account := &model.Account{
		Name:          req.Name,
		ContactNumber: req.ContactNumber,
		Email:         req.Email,
		Role:          req.Role,
		PinHash:       pinHash,
		Status:        model.AccountStatusPending,
		Balance:       0,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}

	return account, nil
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 手机号或邮箱
	PIN        string `json:"pin" binding:"required"`
}

type LoginResponse struct {
	Token string         `json:"token"`
	User  *model.Account `json:"user"`
}

// Login 登录：标识查账户，校验 PIN，签发会话令牌
// 账户不存在与 PIN 错误区分返回，与原始接口行为一致
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	account, err := s.accounts.GetByContact(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}

	if !s.hasher.Verify(req.PIN, account.PinHash) {
		return nil, ErrLoginFailed
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("签发令牌失败: %w", err)
	}

	return &LoginResponse{
		Token: token,
		User:  account,
	}, nil
}
