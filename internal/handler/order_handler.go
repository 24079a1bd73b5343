package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"shop-assist-go/internal/service"
	"shop-assist-go/pkg/log"
)

// OrderHandler 负责处理订单查询的 API 请求。
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler 创建一个新的 OrderHandler 实例。
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// ListOrders 返回当前用户的全部订单，商品按订单内位置排列。
func (h *OrderHandler) ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := h.orderService.ListForUser(user.ID)
	if err != nil {
		log.Errorf("ListOrders: failed for userId=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取订单失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": orders})
}
