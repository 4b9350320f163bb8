package admin

import (
	"time"

	"github.com/partners4saas/engine/internal/http/response"

	"github.com/gin-gonic/gin"
)

// PartnerAnalytics 合作伙伴绩效报表
func (h *Handler) PartnerAnalytics(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.AnalyticsService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	from, to := analyticsPeriod(c)
	report, err := h.AnalyticsService.PartnerReport(c.Request.Context(), id, from, to)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, report)
}

// PartnerSummary 合作伙伴佣金汇总
func (h *Handler) PartnerSummary(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if h.CommissionService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	from, to := analyticsPeriod(c)
	summary, err := h.CommissionService.Summarize(id, from, to)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, summary)
}

// ServiceMetrics 全局服务指标
func (h *Handler) ServiceMetrics(c *gin.Context) {
	if h.AnalyticsService == nil {
		respondError(c, response.CodeInternal, "fetch failed", nil)
		return
	}
	from, to := analyticsPeriod(c)
	metrics, err := h.AnalyticsService.Metrics(c.Request.Context(), from, to)
	if err != nil {
		respondServiceError(c, err, "fetch failed")
		return
	}
	response.Success(c, metrics)
}

// analyticsPeriod 解析报表区间，缺省为最近 30 天
func analyticsPeriod(c *gin.Context) (time.Time, time.Time) {
	now := time.Now()
	from, ok := parseDateQuery(c, "from")
	if !ok {
		from = now.AddDate(0, 0, -30)
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		to = now
	} else {
		// 结束日期按整天计入
		to = to.AddDate(0, 0, 1)
	}
	return from, to
}
