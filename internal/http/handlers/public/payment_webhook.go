package public

import (
	"io"
	"net/http"
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
)

// BankWebhookResponseBody 银行回调响应体
type BankWebhookResponseBody struct {
	Index         string `json:"index"`
	ReferenceCode string `json:"referenceCode"`
}

// BankWebhookResponse 银行回调响应外壳，始终返回 HTTP 200
type BankWebhookResponse struct {
	Timestamp    int64                   `json:"timestamp"`
	ResponseCode string                  `json:"responseCode"`
	Message      string                  `json:"message"`
	ResponseBody BankWebhookResponseBody `json:"responseBody"`
}

// BankWebhook 银行转账到账通知
func (h *Handler) BankWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("bank_webhook_body_read_failed", "client_ip", c.ClientIP(), "error", err)
		c.JSON(http.StatusOK, buildBankWebhookResponse(&service.BankWebhookResult{
			ResponseCode: constants.BankResponseCodeMalformed,
			Message:      "unreadable body",
		}))
		return
	}
	log.Infow("bank_webhook_received", "client_ip", c.ClientIP(), "body_size", len(body))

	result := h.BankWebhookService.Handle(c.Request.Context(), service.BankWebhookInput{
		Body:     body,
		ClientIP: c.ClientIP(),
	})
	log.Infow("bank_webhook_handled",
		"outcome", result.Outcome,
		"strategy", result.Strategy,
		"order_id", result.OrderID,
		"response_code", result.ResponseCode,
	)
	c.JSON(http.StatusOK, buildBankWebhookResponse(result))
}

func buildBankWebhookResponse(result *service.BankWebhookResult) BankWebhookResponse {
	return BankWebhookResponse{
		Timestamp:    time.Now().UnixMilli(),
		ResponseCode: result.ResponseCode,
		Message:      result.Message,
		ResponseBody: BankWebhookResponseBody{
			Index:         result.Index,
			ReferenceCode: result.ReferenceCode,
		},
	}
}
