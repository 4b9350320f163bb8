package admin

import (
	"errors"
	"strconv"

	handlershared "github.com/partners4saas/engine/internal/http/handlers/shared"
	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid id", nil)
		return 0, false
	}
	return uint(id), true
}

// respondServiceError 按服务层错误映射响应
func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "not found", nil)
	case errors.Is(err, service.ErrParamInvalid):
		respondError(c, response.CodeBadRequest, "bad request", nil)
	case errors.Is(err, service.ErrPartnerSlugTaken):
		respondError(c, response.CodeConflict, "slug already exists", nil)
	case errors.Is(err, service.ErrPartnerInactive):
		respondError(c, response.CodeForbidden, "partner inactive", nil)
	case errors.Is(err, service.ErrEventStatusInvalid):
		respondError(c, response.CodeBadRequest, "commission status does not allow this operation", nil)
	case errors.Is(err, service.ErrPayoutStatusInvalid):
		respondError(c, response.CodeBadRequest, "payout status does not allow this operation", nil)
	case errors.Is(err, service.ErrNothingToSettle):
		respondError(c, response.CodeBadRequest, "nothing to settle", nil)
	case errors.Is(err, service.ErrDuplicateDelivery):
		respondError(c, response.CodeConflict, "already processed", nil)
	case errors.Is(err, service.ErrSignatureInvalid):
		respondError(c, response.CodeBadRequest, "signature invalid", nil)
	default:
		respondError(c, response.CodeInternal, fallbackMsg, err)
	}
}
