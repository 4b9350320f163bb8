package admin

import (
	"strconv"
	"strings"

	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListWebhookLogs 查询回调日志
func (h *Handler) ListWebhookLogs(c *gin.Context) {
	if h.WebhookService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	partnerID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("partner_id")), 10, 64)

	filter := repository.WebhookLogListFilter{
		Page:       page,
		PageSize:   pageSize,
		PartnerID:  uint(partnerID),
		OnlyFailed: c.Query("only_failed") == "true",
	}
	if from, ok := parseDateQuery(c, "from"); ok {
		filter.CreatedFrom = &from
	}
	if to, ok := parseDateQuery(c, "to"); ok {
		filter.CreatedTo = &to
	}

	rows, total, err := h.WebhookService.ListLogs(filter)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// RetryWebhookLog 重放失败的回调日志
func (h *Handler) RetryWebhookLog(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.WebhookService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	result, err := h.WebhookService.RetryLog(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, gin.H{
		"event":     result.Event,
		"created":   result.Created,
		"duplicate": result.Duplicate,
	})
}
