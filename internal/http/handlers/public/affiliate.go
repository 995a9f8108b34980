package public

import (
	"net/http"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ReferralLanding 推广落地：校验推广码并写入归因 Cookie
func (h *Handler) ReferralLanding(c *gin.Context) {
	code, err := h.ReferralService.LandingCode(c.Param("code"))
	if err != nil {
		respondWithMappedError(c, err, referralLandingErrorRules, response.CodeInternal, "error.internal")
		return
	}
	days := h.Config.Commission.ReferralCookieDays
	if days <= 0 {
		days = 30
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.ReferralCookieName, code, days*24*3600, "/", "", false, true)
	requestLog(c).Infow("referral_landing", "code", code, "client_ip", c.ClientIP())
	response.Success(c, gin.H{"referral_code": code, "expires_in_days": days})
}
