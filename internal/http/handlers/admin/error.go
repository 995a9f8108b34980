package admin

import (
	"errors"

	handlershared "github.com/payledger/internal/http/handlers/shared"
	"github.com/payledger/internal/http/response"
	"github.com/payledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

// mappedHandlerError 业务错误到接口错误的映射
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

var orderStatusErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrInvalidOrderStatus, code: response.CodeBadRequest, key: "error.order_status_invalid"},
	{target: service.ErrOrderStatusBackward, code: response.CodeBadRequest, key: "error.order_status_backward"},
	{target: service.ErrOrderAlreadyFinal, code: response.CodeBadRequest, key: "error.order_already_final"},
	{target: service.ErrOrderStatusConflict, code: response.CodeConflict, key: "error.order_status_conflict"},
}

var orderPurgeErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderNotCancelled, code: response.CodeBadRequest, key: "error.order_not_cancelled"},
	{target: service.ErrOrderHasCreditedIncome, code: response.CodeConflict, key: "error.order_has_credited_income"},
}

var commissionBulkErrorRules = []mappedHandlerError{
	{target: service.ErrCommissionActionInvalid, code: response.CodeBadRequest, key: "error.commission_action_invalid"},
	{target: service.ErrCommissionIDsRequired, code: response.CodeBadRequest, key: "error.commission_ids_required"},
	{target: service.ErrCommissionTooManyIDs, code: response.CodeBadRequest, key: "error.commission_too_many_ids"},
}

var affiliateUpdateErrorRules = []mappedHandlerError{
	{target: service.ErrAffiliateNotFound, code: response.CodeNotFound, key: "error.affiliate_not_found"},
	{target: service.ErrAffiliateRateInvalid, code: response.CodeBadRequest, key: "error.affiliate_rate_invalid"},
	{target: service.ErrAffiliateLevelInvalid, code: response.CodeBadRequest, key: "error.affiliate_level_invalid"},
	{target: service.ErrAffiliateParentInvalid, code: response.CodeBadRequest, key: "error.affiliate_parent_invalid"},
	{target: service.ErrReferralCodeTaken, code: response.CodeConflict, key: "error.referral_code_taken"},
}
