package service

import (
	"strings"

	"shop-assist-go/internal/model"
)

// 优先级关键词集合。支付相关优先于订单相关。
var (
	paymentKeywords = []string{"payment", "refund", "billing", "charge", "transaction"}
	orderKeywords   = []string{"order", "delivery", "product", "item", "cancel", "undo"}
)

// ClassifyPriority 根据问题描述给工单分配优先级。
// 大小写不敏感的子串匹配：命中任一支付类关键词返回 high；否则返回 low。
// 注意订单类关键词命中与完全未命中目前都落在 low 上——这是沿用的既有
// 行为，订单类集合实际不影响结果，是否该有第三档留给产品方决定。
func ClassifyPriority(description string) string {
	lower := strings.ToLower(description)
	for _, kw := range paymentKeywords {
		if strings.Contains(lower, kw) {
			return model.PriorityHigh
		}
	}
	for _, kw := range orderKeywords {
		if strings.Contains(lower, kw) {
			return model.PriorityLow
		}
	}
	return model.PriorityLow
}
