package admin

import "github.com/partners4saas/engine/internal/provider"

// Handler 运营端接口处理器入口
// 说明：该处理器仅用于运营端 API。
type Handler struct {
	*provider.Container
}

// New 创建运营端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
