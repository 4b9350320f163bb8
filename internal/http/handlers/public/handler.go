package public

import "github.com/partners4saas/engine/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器仅用于点击上报、转化直报与合作方 Webhook 接入。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
