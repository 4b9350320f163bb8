package service

import "errors"

// 服务层统一错误，由 HTTP 层映射为响应码
var (
	ErrNotFound            = errors.New("资源不存在")
	ErrParamInvalid        = errors.New("参数无效")
	ErrPartnerInactive     = errors.New("合作伙伴已停用")
	ErrPartnerSlugTaken    = errors.New("合作伙伴标识已存在")
	ErrSignatureInvalid    = errors.New("签名校验失败")
	ErrDuplicateDelivery   = errors.New("重复投递")
	ErrEventStatusInvalid  = errors.New("佣金状态不允许该操作")
	ErrPayoutStatusInvalid = errors.New("结算单状态不允许该操作")
	ErrNothingToSettle     = errors.New("没有可结算的事件")
	ErrAttributionExpired  = errors.New("归因记录已过期")
)
