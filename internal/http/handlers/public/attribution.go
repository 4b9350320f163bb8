package public

import (
	"github.com/partners4saas/engine/internal/http/response"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/service"

	"github.com/gin-gonic/gin"
)

// TrackClickRequest 点击上报请求
type TrackClickRequest struct {
	ReferralCode string      `json:"referral_code" binding:"required"`
	UserKey      string      `json:"user_key"`
	SiteID       string      `json:"site_id"`
	ProjectID    string      `json:"project_id"`
	Referrer     string      `json:"referrer"`
	LandingPage  string      `json:"landing_page"`
	Metadata     models.JSON `json:"metadata"`
}

// TrackClick 记录推荐点击
func (h *Handler) TrackClick(c *gin.Context) {
	var req TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.AttributionService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	attribution, err := h.AttributionService.RecordClick(c.Request.Context(), service.RecordClickInput{
		ReferralCode: req.ReferralCode,
		UserKey:      req.UserKey,
		SiteID:       req.SiteID,
		ProjectID:    req.ProjectID,
		ClientIP:     c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
		Referrer:     req.Referrer,
		LandingPage:  req.LandingPage,
		Metadata:     req.Metadata,
	})
	if err != nil {
		respondWithMappedError(c, err, publicCommonErrorRules, response.CodeInternal, "save failed")
		return
	}
	response.Success(c, gin.H{
		"attribution_id": attribution.ID,
		"partner_id":     attribution.PartnerID,
		"expires_at":     attribution.ExpiresAt,
	})
}

// EnrichAttributionRequest 归因元数据补充请求
type EnrichAttributionRequest struct {
	Metadata models.JSON `json:"metadata" binding:"required"`
}

// EnrichAttribution 补充归因元数据
func (h *Handler) EnrichAttribution(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req EnrichAttributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if h.AttributionService == nil {
		respondError(c, response.CodeInternal, "save failed", nil)
		return
	}

	attribution, err := h.AttributionService.EnrichMetadata(id, req.Metadata)
	if err != nil {
		rules := append([]mappedHandlerError{
			{target: service.ErrAttributionExpired, code: response.CodeBadRequest, msg: "attribution expired"},
		}, publicCommonErrorRules...)
		respondWithMappedError(c, err, rules, response.CodeInternal, "save failed")
		return
	}
	response.Success(c, attribution)
}
