package public

import (
	"errors"

	"github.com/fenxiao-next/internal/http/handlers/shared"
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	shared.RespondError(c, code, msg, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return shared.NormalizePagination(page, pageSize)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var referralCaptureErrorRules = []mappedHandlerError{
	{target: service.ErrAffiliateProgramDisabled, code: response.CodeBadRequest, msg: "affiliate program disabled"},
	{target: service.ErrAffiliateCodeInvalid, code: response.CodeBadRequest, msg: "affiliate code invalid"},
	{target: service.ErrAffiliateDisabled, code: response.CodeBadRequest, msg: "affiliate code invalid"},
	{target: service.ErrNotFound, code: response.CodeBadRequest, msg: "affiliate code invalid"},
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, msg: "bad request"},
}

var orderHookErrorRules = []mappedHandlerError{
	{target: service.ErrOrderExists, code: response.CodeConflict, msg: "order already exists"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "order not found"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, msg: "order status invalid"},
	{target: service.ErrConflict, code: response.CodeConflict, msg: "concurrent modification, retry"},
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, msg: "bad request"},
}
