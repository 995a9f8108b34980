package admin

import (
	"strings"

	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/repository"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
)

// CommissionBulkRequest 佣金批量动作请求
type CommissionBulkRequest struct {
	Action         string `json:"action" binding:"required,commission_action"`
	TransactionIDs []uint `json:"transaction_ids" binding:"required,min=1,max=500"`
	PaymentInfo    string `json:"payment_info" binding:"max=500"`
	Reason         string `json:"reason" binding:"max=500"`
}

// CommissionNoteRequest 佣金备注请求
type CommissionNoteRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

// AdminListCommissions 佣金流水列表
func (h *Handler) AdminListCommissions(c *gin.Context) {
	page, pageSize := parsePageQuery(c)
	rows, total, err := h.CommissionService.List(repository.CommissionListFilter{
		Page:     page,
		PageSize: pageSize,
		PayeeID:  parseUintQuery(c, "payee_id"),
		OrderID:  parseUintQuery(c, "order_id"),
		Status:   strings.TrimSpace(c.Query("status")),
		Kind:     strings.TrimSpace(c.Query("kind")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// AdminBulkCommissions 批量审核/驳回/支付/取消佣金
func (h *Handler) AdminBulkCommissions(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CommissionBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.CommissionService.BulkAction(c.Request.Context(), service.CommissionBulkInput{
		Action:      strings.ToLower(strings.TrimSpace(req.Action)),
		IDs:         req.TransactionIDs,
		PaymentInfo: strings.TrimSpace(req.PaymentInfo),
		Reason:      strings.TrimSpace(req.Reason),
		AdminID:     adminID,
	})
	if err != nil {
		respondWithMappedError(c, err, commissionBulkErrorRules, response.CodeInternal, "error.commission_update_failed")
		return
	}
	requestLog(c).Infow("admin_commission_bulk",
		"admin_id", adminID,
		"action", req.Action,
		"transitioned", result.Transitioned,
		"skipped", result.Skipped,
	)
	response.Success(c, result)
}

// AdminUpdateCommissionNote 更新佣金备注
func (h *Handler) AdminUpdateCommissionNote(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CommissionNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	row, err := h.CommissionService.UpdateNote(id, strings.TrimSpace(req.Note))
	if err != nil {
		respondWithMappedError(c, err, []mappedHandlerError{
			{target: service.ErrCommissionNotFound, code: response.CodeNotFound, key: "error.commission_not_found"},
		}, response.CodeInternal, "error.commission_update_failed")
		return
	}
	response.Success(c, row)
}
