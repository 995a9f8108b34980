package admin

import (
	"errors"

	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/repository"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateAffiliateRequest 推广人配置请求；省略的字段保持不变
type UpdateAffiliateRequest struct {
	ReferralCode           *string `json:"referral_code" binding:"omitempty,max=32"`
	AffiliateLevel         *string `json:"affiliate_level"`
	ParentStaffID          *uint   `json:"parent_staff_id"`
	ClearParentStaff       bool    `json:"clear_parent_staff"`
	CommissionRateOverride *string `json:"commission_rate_override"`
	StaffCommissionRate    *string `json:"staff_commission_rate"`
}

// AdminGetAffiliate 推广人详情（含余额）
func (h *Handler) AdminGetAffiliate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, err := h.WalletService.GetAffiliate(id)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			respondError(c, response.CodeNotFound, "error.affiliate_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.Success(c, user)
}

// AdminUpdateAffiliate 更新推广人配置
func (h *Handler) AdminUpdateAffiliate(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req UpdateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.ReferralService.UpdateAffiliate(id, service.AffiliateUpdateInput{
		ReferralCode:           req.ReferralCode,
		AffiliateLevel:         req.AffiliateLevel,
		ParentStaffID:          req.ParentStaffID,
		ClearParentStaff:       req.ClearParentStaff,
		CommissionRateOverride: req.CommissionRateOverride,
		StaffCommissionRate:    req.StaffCommissionRate,
	})
	if err != nil {
		respondWithMappedError(c, err, affiliateUpdateErrorRules, response.CodeInternal, "error.internal")
		return
	}
	requestLog(c).Infow("admin_affiliate_updated", "admin_id", adminID, "user_id", id)
	response.Success(c, user)
}

// AdminListWalletTransactions 推广人钱包流水
func (h *Handler) AdminListWalletTransactions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	page, pageSize := parsePageQuery(c)
	rows, total, err := h.WalletService.ListTransactions(repository.WalletTransactionListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   id,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
