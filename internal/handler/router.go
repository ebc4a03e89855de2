package handler

import (
	"finpay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)
	authRequired := AuthMiddleware(h.tokens)

	// 注册登录（无需认证）
	r.PUT("/register", h.Register)
	r.POST("/login", h.Login)
	r.GET("/profile", authRequired, h.Profile)

	// API 路由组（需认证）
	api := r.Group("/api/v1", authRequired)
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/cashin", h.CashIn)
		}

		// 转账相关
		transfer := api.Group("/transfer")
		{
			transfer.POST("/send", h.SendMoney)
			transfer.POST("/cashout", h.CashOut)
			transfer.GET("/status", h.GetTransferStatus)
			transfer.GET("/list", h.ListEntries)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
