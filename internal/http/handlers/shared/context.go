package shared

import (
	"github.com/payledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AdminIDKey 鉴权中间件写入的管理员 ID
const AdminIDKey = "admin_id"

// RequireAdminID 读取当前管理员 ID；缺失时回 401，类型不对说明中间件链配置有误，回 500
func RequireAdminID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(AdminIDKey)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	id, ok := value.(uint)
	if !ok || id == 0 {
		RespondError(c, response.CodeInternal, "error.context_type_invalid", nil)
		return 0, false
	}
	return id, true
}
