package service

import (
	"shop-assist-go/internal/model"
	"shop-assist-go/internal/repository"
)

// OrderService 定义了订单查询的业务接口。订单由外部交易系统写入，
// 这里只读；唯一的写路径是管理员处理工单时的商品修改（见 CaseService）。
type OrderService interface {
	ListForUser(userID uint) ([]model.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
}

// NewOrderService 创建一个新的 OrderService 实例。
func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

// ListForUser 返回某个用户的全部订单。
func (s *orderService) ListForUser(userID uint) ([]model.Order, error) {
	return s.orderRepo.FindByUser(userID)
}
