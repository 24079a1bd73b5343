package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"shop-assist-go/internal/service"
	"shop-assist-go/pkg/log"
)

// ChatHandler 负责处理聊天相关的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest 定义了聊天 API 的请求体结构。
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chat 处理一轮对话请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrEmptyMessage.Error()})
		return
	}

	reply, err := h.chatService.HandleChatTurn(c.Request.Context(), user.ID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoProductSelected), errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrGenerationFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			log.Errorf("Chat: unexpected error for userId=%d: %v", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// SelectProductRequest 定义了选择商品上下文 API 的请求体结构。
// productIndex 是商品在订单内的位置下标。
type SelectProductRequest struct {
	OrderID      string `json:"orderId" binding:"required"`
	ProductIndex *int   `json:"productIndex" binding:"required"`
}

// SelectProduct 设置当前会话针对的商品。
func (h *ChatHandler) SelectProduct(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req SelectProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：orderId 和 productIndex 不能为空"})
		return
	}

	if err := h.chatService.SelectProduct(c.Request.Context(), user.ID, req.OrderID, *req.ProductIndex); err != nil {
		if errors.Is(err, service.ErrInvalidOrderOrProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("SelectProduct: failed for userId=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "选择商品失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "商品已选择"})
}

// ClearSelection 清除当前会话的商品上下文。
func (h *ChatHandler) ClearSelection(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.chatService.ClearSelection(c.Request.Context(), user.ID); err != nil {
		log.Errorf("ClearSelection: failed for userId=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "取消选择失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "已取消选择"})
}

// History 返回当前用户的聊天记录。
func (h *ChatHandler) History(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	entries, err := h.chatService.History(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("History: failed for userId=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取聊天记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": entries})
}
