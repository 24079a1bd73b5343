package service

import (
	"context"

	"shop-assist-go/pkg/kafka"
	"shop-assist-go/pkg/log"
)

// CaseNotifier 消费工单生命周期事件并记录操作日志。
// 高优先级工单的创建单独提醒，方便值班人员在日志告警里捞出来。
type CaseNotifier struct{}

// NewCaseNotifier 创建一个新的 CaseNotifier 实例。
func NewCaseNotifier() *CaseNotifier {
	return &CaseNotifier{}
}

// Handle 实现 kafka.EventHandler。
func (n *CaseNotifier) Handle(ctx context.Context, event kafka.CaseEvent) error {
	switch event.Type {
	case kafka.EventCaseCreated:
		if event.Priority == "high" {
			log.Infow("高优先级工单已创建，需要尽快处理",
				"caseId", event.CaseID,
				"userId", event.UserID,
				"orderId", event.OrderID,
				"productIndex", event.ProductIndex,
			)
		} else {
			log.Infow("工单已创建",
				"caseId", event.CaseID,
				"userId", event.UserID,
				"orderId", event.OrderID,
			)
		}
	case kafka.EventCaseResolved:
		log.Infow("工单已解决", "caseId", event.CaseID, "userId", event.UserID)
	default:
		log.Infow("工单已更新", "caseId", event.CaseID, "status", event.Status, "priority", event.Priority)
	}
	return nil
}
