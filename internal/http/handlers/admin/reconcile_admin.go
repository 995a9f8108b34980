package admin

import (
	"strconv"

	"github.com/payledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ReconcileRequest 对账修复请求
type ReconcileRequest struct {
	Limit int `json:"limit" binding:"min=0,max=500"`
}

// AdminInspectReconciliation 查看待修复项
func (h *Handler) AdminInspectReconciliation(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	report, err := h.ReconcileService.Inspect(limit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.reconcile_failed", err)
		return
	}
	response.Success(c, report)
}

// AdminRunReconciliation 执行对账修复
func (h *Handler) AdminRunReconciliation(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
	}
	result, err := h.ReconcileService.Repair(c.Request.Context(), req.Limit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.reconcile_failed", err)
		return
	}
	requestLog(c).Infow("admin_reconcile_run",
		"admin_id", adminID,
		"credited", result.CreditedCommissions,
		"approved_orders", result.ApprovedOrders,
		"failed", result.Failed,
	)
	response.Success(c, result)
}

// AdminCancelledAfterPayout 取消后佣金已入账报表
func (h *Handler) AdminCancelledAfterPayout(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	rows, err := h.ReconcileService.CancelledAfterPayout(limit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.Success(c, rows)
}
