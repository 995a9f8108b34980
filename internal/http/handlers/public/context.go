package public

import (
	"strings"

	"github.com/payledger/internal/constants"

	"github.com/gin-gonic/gin"
)

// resolveReferralCode 请求体中的推广码优先，其次读取归因 Cookie
func resolveReferralCode(c *gin.Context, bodyCode string) string {
	if code := strings.TrimSpace(bodyCode); code != "" {
		return code
	}
	cookie, err := c.Cookie(constants.ReferralCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie)
}
