package public

import (
	"errors"
	"io"
	"strings"

	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/queue"
	"github.com/partners4saas/engine/internal/service"

	"github.com/gin-gonic/gin"
)

// PartnerWebhook 合作方 Webhook 接入
// 签名通过后先确认再异步解析，队列不可用时退化为同步处理。
func (h *Handler) PartnerWebhook(c *gin.Context) {
	log := requestLog(c)
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("webhook_body_read_failed", "partner_slug", slug, "error", err)
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.WebhookService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	signature := c.GetHeader("X-Signature")
	requestID := ""
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			requestID = id
		}
	}
	log.Infow("webhook_received",
		"partner_slug", slug,
		"client_ip", c.ClientIP(),
		"body_size", len(body),
	)

	webhookLog, err := h.WebhookService.Ingest(c.Request.Context(), slug, body, signature, requestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			respondError(c, response.CodeUnauthorized, "signature invalid", nil)
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "partner not found", nil)
		case errors.Is(err, service.ErrPartnerInactive):
			respondError(c, response.CodeForbidden, "partner inactive", nil)
		default:
			respondError(c, response.CodeInternal, "save failed", err)
		}
		return
	}

	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueWebhookProcess(queue.WebhookProcessPayload{LogID: webhookLog.ID}); err != nil {
			log.Warnw("webhook_enqueue_failed", "log_id", webhookLog.ID, "error", err)
		} else {
			response.Success(c, gin.H{"accepted": true, "log_id": webhookLog.ID})
			return
		}
	}

	result, err := h.WebhookService.ProcessLog(c.Request.Context(), webhookLog.ID)
	if err != nil {
		log.Warnw("webhook_process_failed", "log_id", webhookLog.ID, "error", err)
		respondError(c, response.CodeBadRequest, "payload invalid", nil)
		return
	}
	response.Success(c, gin.H{
		"accepted":  true,
		"log_id":    webhookLog.ID,
		"duplicate": result.Duplicate,
	})
}
