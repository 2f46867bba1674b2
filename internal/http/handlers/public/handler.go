package public

import "github.com/fenxiao-next/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器用于访客归因、推广申请与订单事件钩子。
type Handler struct {
	*provider.Container
}

// New 创建公开处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
