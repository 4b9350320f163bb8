package public

import (
	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/service"

	"github.com/gin-gonic/gin"
)

// RecordConversionRequest 转化直报请求
type RecordConversionRequest struct {
	PartnerSlug string       `json:"partner_slug" binding:"required"`
	EventType   string       `json:"event_type" binding:"required"`
	ExternalID  string       `json:"external_id" binding:"required"`
	UserKey     string       `json:"user_key"`
	Amount      models.Money `json:"amount"`
	Currency    string       `json:"currency"`
	Metadata    models.JSON  `json:"metadata"`
}

// RecordConversion 平台直报转化事件
// 同一 (partner, external_id) 重复投递返回已存在的事件
func (h *Handler) RecordConversion(c *gin.Context) {
	var req RecordConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.WebhookService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	result, err := h.WebhookService.RecordConversion(c.Request.Context(), service.ConversionInput{
		PartnerSlug: req.PartnerSlug,
		EventType:   req.EventType,
		ExternalID:  req.ExternalID,
		UserKey:     req.UserKey,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	})
	if err != nil {
		respondWithMappedError(c, err, publicCommonErrorRules, response.CodeInternal, "save failed")
		return
	}
	response.Success(c, gin.H{
		"event":     result.Event,
		"duplicate": result.Duplicate,
	})
}
