package admin

import (
	"strings"

	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminListWebhookLogs 银行回调审计日志
func (h *Handler) AdminListWebhookLogs(c *gin.Context) {
	page, pageSize := parsePageQuery(c)
	rows, total, err := h.BankWebhookService.ListLogs(repository.WebhookLogListFilter{
		Page:          page,
		PageSize:      pageSize,
		Provider:      strings.TrimSpace(c.Query("provider")),
		Outcome:       strings.TrimSpace(c.Query("outcome")),
		TransactionID: strings.TrimSpace(c.Query("transaction_id")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.query_failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
