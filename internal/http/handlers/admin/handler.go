package admin

import "github.com/payledger/internal/provider"

// Handler 管理端接口：订单状态、佣金审批、推广员与钱包流水、对账。
// 依赖统一从 Container 取，路由层负责鉴权与 casbin 校验，这里默认 admin_id 已就绪。
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
