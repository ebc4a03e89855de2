package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码，与转账失败类型一一对应
const (
	CodeBelowMinimum        = 1001
	CodeInvalidAmount       = 1002
	CodeInvalidCredential   = 1003
	CodeInsufficientBalance = 1004
	CodeRecipientNotFound   = 1005
	CodeAgentNotFound       = 1006
	CodeSelfTransfer        = 1007
	CodeTransferFailed      = 1008
	// 1009 空缺：幂等重放按原结果走 CodeSuccess，重复请求不是错误
	CodeAccountExists   = 1010
	CodeAccountNotFound = 1011
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
