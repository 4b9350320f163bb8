package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/partners4saas/engine/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePayoutRequest 创建结算单请求
type CreatePayoutRequest struct {
	PartnerID   uint     `json:"partner_id" binding:"required"`
	PeriodStart string   `json:"period_start" binding:"required"`
	PeriodEnd   string   `json:"period_end" binding:"required"`
	EventTypes  []string `json:"event_types"`
}

// RunMonthlyPayoutsRequest 手动触发月度结算请求
type RunMonthlyPayoutsRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// MarkPayoutPaidRequest 打款确认请求
type MarkPayoutPaidRequest struct {
	PaymentReference string `json:"payment_reference" binding:"required"`
}

// DisputePayoutRequest 结算单争议请求
type DisputePayoutRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreatePayout 为合作伙伴创建结算单
func (h *Handler) CreatePayout(c *gin.Context) {
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.SettlementService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid period", nil)
		return
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid period", nil)
		return
	}

	payout, err := h.SettlementService.CreatePayout(req.PartnerID, periodStart, periodEnd, req.EventTypes)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, payout)
}

// RunMonthlyPayouts 手动触发月度结算
func (h *Handler) RunMonthlyPayouts(c *gin.Context) {
	var req RunMonthlyPayoutsRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.SettlementService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	var periodStart, periodEnd time.Time
	if strings.TrimSpace(req.PeriodStart) != "" && strings.TrimSpace(req.PeriodEnd) != "" {
		var err error
		periodStart, err = time.Parse("2006-01-02", req.PeriodStart)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid period", nil)
			return
		}
		periodEnd, err = time.Parse("2006-01-02", req.PeriodEnd)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid period", nil)
			return
		}
	} else {
		periodStart, periodEnd = service.PreviousMonthPeriod(time.Now())
	}

	result, err := h.SettlementService.ProcessMonthlyPayouts(periodStart, periodEnd)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, result)
}

// MarkPayoutPaid 打款确认
func (h *Handler) MarkPayoutPaid(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req MarkPayoutPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.SettlementService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	payout, err := h.SettlementService.MarkPaid(id, req.PaymentReference)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, payout)
}

// DisputePayout 结算单争议
func (h *Handler) DisputePayout(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req DisputePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.SettlementService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	payout, err := h.SettlementService.Dispute(id, req.Reason)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, payout)
}

// GetPayout 获取结算单
func (h *Handler) GetPayout(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.SettlementService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	payout, err := h.SettlementService.Get(id)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, payout)
}

// ListPayouts 查询结算单列表
func (h *Handler) ListPayouts(c *gin.Context) {
	if h.SettlementService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	partnerID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("partner_id")), 10, 64)

	rows, total, err := h.SettlementService.List(repository.PayoutListFilter{
		Page:      page,
		PageSize:  pageSize,
		PartnerID: uint(partnerID),
		Status:    strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}
