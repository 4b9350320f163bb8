package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/repository"

	"github.com/gin-gonic/gin"
)

// DisputeEventRequest 佣金争议请求
type DisputeEventRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListEvents 查询转化事件列表
func (h *Handler) ListEvents(c *gin.Context) {
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	partnerID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("partner_id")), 10, 64)

	filter := repository.EventListFilter{
		Page:       page,
		PageSize:   pageSize,
		PartnerID:  uint(partnerID),
		EventType:  strings.TrimSpace(c.Query("event_type")),
		Status:     strings.TrimSpace(c.Query("status")),
		ExternalID: strings.TrimSpace(c.Query("external_id")),
	}
	if from, ok := parseDateQuery(c, "from"); ok {
		filter.CreatedFrom = &from
	}
	if to, ok := parseDateQuery(c, "to"); ok {
		filter.CreatedTo = &to
	}

	rows, total, err := h.CommissionService.ListEvents(filter)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetEvent 获取转化事件
func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	event, err := h.CommissionService.GetEvent(id)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, event)
}

// VerifyEvent 核实事件佣金
func (h *Handler) VerifyEvent(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	event, err := h.CommissionService.VerifyEvent(id)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, event)
}

// DisputeEvent 争议事件佣金
func (h *Handler) DisputeEvent(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req DisputeEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	event, err := h.CommissionService.DisputeEvent(id, req.Reason)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, event)
}

// ReinstateEvent 撤销事件争议
func (h *Handler) ReinstateEvent(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	event, err := h.CommissionService.ReinstateEvent(id)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, event)
}

// RecalculateEvent 复核事件佣金快照
func (h *Handler) RecalculateEvent(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	result, err := h.CommissionService.RecalculateEvent(id)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, result)
}

func parseDateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
