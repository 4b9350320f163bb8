package admin

import (
	"strconv"
	"strings"

	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/partners4saas/engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePartnerRequest 创建合作伙伴请求
type CreatePartnerRequest struct {
	Name                     string          `json:"name" binding:"required"`
	Slug                     string          `json:"slug" binding:"required"`
	CommissionType           string          `json:"commission_type" binding:"required"`
	CommissionRate           decimal.Decimal `json:"commission_rate"`
	FixedAmount              decimal.Decimal `json:"fixed_amount"`
	AttributionWindowDays    int             `json:"attribution_window_days"`
	ReferralParam            string          `json:"referral_param"`
	CommissionOnUnattributed bool            `json:"commission_on_unattributed"`
}

// UpdatePartnerRequest 更新合作伙伴请求
type UpdatePartnerRequest struct {
	Name                     *string          `json:"name"`
	CommissionType           *string          `json:"commission_type"`
	CommissionRate           *decimal.Decimal `json:"commission_rate"`
	FixedAmount              *decimal.Decimal `json:"fixed_amount"`
	AttributionWindowDays    *int             `json:"attribution_window_days"`
	ReferralParam            *string          `json:"referral_param"`
	CommissionOnUnattributed *bool            `json:"commission_on_unattributed"`
}

// PartnerActiveRequest 启停合作伙伴请求
type PartnerActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// ReferralURLRequest 推荐链接生成请求
type ReferralURLRequest struct {
	TargetURL string `json:"target_url"`
	UserKey   string `json:"user_key"`
	ProjectID string `json:"project_id"`
	SiteID    string `json:"site_id"`
	Campaign  string `json:"campaign"`
}

// CreatePartner 创建合作伙伴
func (h *Handler) CreatePartner(c *gin.Context) {
	var req CreatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	partner, err := h.PartnerService.Create(service.CreatePartnerInput{
		Name:                     req.Name,
		Slug:                     req.Slug,
		CommissionType:           req.CommissionType,
		CommissionRate:           req.CommissionRate,
		FixedAmount:              req.FixedAmount,
		AttributionWindowDays:    req.AttributionWindowDays,
		ReferralParam:            req.ReferralParam,
		CommissionOnUnattributed: req.CommissionOnUnattributed,
	})
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	// webhook 密钥只在创建响应中返回一次
	response.Success(c, gin.H{
		"partner":        partner,
		"webhook_secret": partner.WebhookSecret,
	})
}

// UpdatePartner 更新合作伙伴
func (h *Handler) UpdatePartner(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req UpdatePartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	partner, err := h.PartnerService.Update(id, service.UpdatePartnerInput{
		Name:                     req.Name,
		CommissionType:           req.CommissionType,
		CommissionRate:           req.CommissionRate,
		FixedAmount:              req.FixedAmount,
		AttributionWindowDays:    req.AttributionWindowDays,
		ReferralParam:            req.ReferralParam,
		CommissionOnUnattributed: req.CommissionOnUnattributed,
	})
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, partner)
}

// SetPartnerActive 启用/停用合作伙伴
func (h *Handler) SetPartnerActive(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req PartnerActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	partner, err := h.PartnerService.SetActive(id, *req.IsActive)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, partner)
}

// RotatePartnerWebhookSecret 更换 Webhook 签名密钥
func (h *Handler) RotatePartnerWebhookSecret(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}
	partner, err := h.PartnerService.RotateWebhookSecret(id)
	if err != nil {
		respondServiceError(c, err, "save failed")
		return
	}
	response.Success(c, gin.H{
		"partner_id":     partner.ID,
		"webhook_secret": partner.WebhookSecret,
	})
}

// GetPartner 获取合作伙伴
func (h *Handler) GetPartner(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	partner, err := h.PartnerService.Get(id)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, partner)
}

// ListPartners 查询合作伙伴列表
func (h *Handler) ListPartners(c *gin.Context) {
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.PartnerService.List(repository.PartnerListFilter{
		Page:       page,
		PageSize:   pageSize,
		Keyword:    strings.TrimSpace(c.Query("keyword")),
		OnlyActive: c.Query("only_active") == "true",
	})
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GeneratePartnerReferralURL 生成推荐链接
func (h *Handler) GeneratePartnerReferralURL(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req ReferralURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.PartnerService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}

	referralURL, err := h.PartnerService.GenerateReferralURL(id, service.ReferralURLInput{
		TargetURL: req.TargetURL,
		UserKey:   req.UserKey,
		ProjectID: req.ProjectID,
		SiteID:    req.SiteID,
		Campaign:  req.Campaign,
	})
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, gin.H{"url": referralURL})
}
