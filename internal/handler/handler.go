package handler

import (
	"errors"
	"strconv"

	"finpay/internal/auth"
	"finpay/internal/config"
	"finpay/internal/infrastructure/lock"
	"finpay/internal/repository"
	"finpay/internal/service"
	"finpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService     *service.AuthService
	accountService  *service.AccountService
	transferService *service.TransferService
	tokens          *auth.TokenManager
}

// NewHandler 创建处理器实例，组装真实的存储/锁/凭证实现
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	accountRepo := repository.NewAccountRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	credential := auth.NewBcryptCredential()
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)

	return &Handler{
		authService:     service.NewAuthService(accountRepo, credential, tokens),
		accountService:  service.NewAccountService(accountRepo, transferRepo),
		transferService: service.NewTransferService(accountRepo, transferRepo, lock.NewTransferLocker(rdb), credential, cfg),
		tokens:          tokens,
	}
}

// ============================================================
// 注册登录接口
// ============================================================

// Register 注册账户
// PUT /register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			response.BusinessError(c, response.CodeAccountExists, err.Error())
		case errors.Is(err, service.ErrInvalidRole):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"user_id": account.ID,
		"status":  account.Status,
		"message": "注册成功，等待管理员审批",
	})
}

// Login 登录
// POST /login
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
		case errors.Is(err, service.ErrLoginFailed):
			response.BusinessError(c, response.CodeInvalidCredential, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"token": result.Token,
		"user": gin.H{
			"name":  result.User.Name,
			"email": result.User.Email,
		},
	})
}

// Profile 查询当前账户信息
// GET /profile
func (h *Handler) Profile(c *gin.Context) {
	account, err := h.accountService.GetAccount(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"user": account})
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询当前账户余额
// GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.accountService.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"balance": balance})
}

// CashInRequest 充值请求
type CashInRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// CashIn 充值（简化版，实际应走支付渠道）
// POST /api/v1/account/cashin
func (h *Handler) CashIn(c *gin.Context) {
	var req CashInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	cashInNo, err := h.accountService.CashIn(c.Request.Context(), currentUserID(c), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			response.BusinessError(c, response.CodeInvalidAmount, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"cash_in_no": cashInNo,
		"message":    "充值成功",
	})
}

// ============================================================
// 转账相关接口
// ============================================================

// SendMoney 用户间转账
// POST /api/v1/transfer/send
//
// 【关键点】转账是整个系统最核心的操作，需要保证：
// 1. 幂等性：相同的 request_id 只会执行一次
// 2. 原子性：两边余额变动、双边流水、转账记录必须同时成功或同时失败
// 3. 并发安全：余额守卫 + 乐观锁重试，绝不超扣
func (h *Handler) SendMoney(c *gin.Context) {
	var req service.SendMoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.SenderID = currentUserID(c)

	result, err := h.transferService.SendMoney(c.Request.Context(), &req)
	if err != nil {
		h.transferError(c, err)
		return
	}

	response.Success(c, result)
}

// CashOut 通过代理提现
// POST /api/v1/transfer/cashout
func (h *Handler) CashOut(c *gin.Context) {
	var req service.CashOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.UserID = currentUserID(c)

	result, err := h.transferService.CashOut(c.Request.Context(), &req)
	if err != nil {
		h.transferError(c, err)
		return
	}

	response.Success(c, result)
}

// GetTransferStatus 按幂等ID查询转账终态
// GET /api/v1/transfer/status?request_id=xxx
// 调用方超时后用它确认转账是否已提交，避免盲目重试
func (h *Handler) GetTransferStatus(c *gin.Context) {
	requestID := c.Query("request_id")
	if requestID == "" {
		response.ParamError(c, "request_id 参数不能为空")
		return
	}

	result, err := h.transferService.QueryByRequestID(c.Request.Context(), requestID)
	if err != nil {
		if errors.Is(err, service.ErrTransferNotFound) {
			response.BusinessError(c, response.CodeNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ListEntries 查询当前账户流水
// GET /api/v1/transfer/list?page=1&page_size=10
func (h *Handler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	entries, total, err := h.accountService.ListEntries(c.Request.Context(), currentUserID(c), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// transferError 转账失败类型到业务错误码的映射
func (h *Handler) transferError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBelowMinimum):
		response.BusinessError(c, response.CodeBelowMinimum, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrInvalidCredential):
		response.BusinessError(c, response.CodeInvalidCredential, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, service.ErrRecipientNotFound):
		response.BusinessError(c, response.CodeRecipientNotFound, err.Error())
	case errors.Is(err, service.ErrAgentNotFound):
		response.BusinessError(c, response.CodeAgentNotFound, err.Error())
	case errors.Is(err, service.ErrSelfTransfer):
		response.BusinessError(c, response.CodeSelfTransfer, err.Error())
	case errors.Is(err, service.ErrSenderNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, service.ErrTransferFailed):
		response.BusinessError(c, response.CodeTransferFailed, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}
