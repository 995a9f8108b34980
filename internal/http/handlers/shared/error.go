package shared

import (
	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 按错误键返回统一错误响应，带原始错误时记日志
func RespondError(c *gin.Context, code int, key string, err error) {
	appErr := NewAppErrorFor(code, key, err)
	if appErr.Err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"key", appErr.Key,
			"error", appErr.Err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message())
}

// NewAppErrorFor 缺省键按业务码兜底
func NewAppErrorFor(code int, key string, err error) *response.AppError {
	if key == "" {
		switch code {
		case response.CodeBadRequest:
			key = "error.bad_request"
		case response.CodeUnauthorized:
			key = "error.unauthorized"
		case response.CodeNotFound:
			key = "error.not_found"
		default:
			key = "error.internal"
		}
	}
	return response.NewAppError(code, key, err)
}
