package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"shop-assist-go/internal/service"
	"shop-assist-go/pkg/log"
)

// CaseHandler 负责处理用户侧工单相关的 API 请求。
type CaseHandler struct {
	caseService service.CaseService
}

// NewCaseHandler 创建一个新的 CaseHandler 实例。
func NewCaseHandler(caseService service.CaseService) *CaseHandler {
	return &CaseHandler{caseService: caseService}
}

// ListMine 返回当前用户的全部工单。
func (h *CaseHandler) ListMine(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	cases, err := h.caseService.ListForUser(user.ID)
	if err != nil {
		log.Errorf("ListMine: failed for userId=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取工单失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": cases})
}

// CreateCaseRequest 定义了用户显式建单 API 的请求体结构。
type CreateCaseRequest struct {
	OrderID      string `json:"orderId" binding:"required"`
	ProductIndex *int   `json:"productIndex" binding:"required"`
	Description  string `json:"description" binding:"required"`
}

// Create 处理用户显式建单请求。
func (h *CaseHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：orderId、productIndex 和 description 不能为空"})
		return
	}

	filed, err := h.caseService.FileForUser(c.Request.Context(), user.ID, req.OrderID, *req.ProductIndex, req.Description)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrderOrProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Create case: failed for userId=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建工单失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": filed})
}

// CaseResponseRequest 定义了追加工单回复 API 的请求体结构。
type CaseResponseRequest struct {
	Message string `json:"message" binding:"required"`
}

// AddResponse 向当前用户自己的工单追加一条回复。
func (h *CaseHandler) AddResponse(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	caseID := c.Param("caseId")
	existing, err := h.caseService.GetByID(caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工单不存在"})
			return
		}
		log.Errorf("AddResponse: lookup failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取工单失败"})
		return
	}
	// 用户只能回复自己的工单
	if existing.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权操作该工单"})
		return
	}

	var req CaseResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：message 不能为空"})
		return
	}

	updated, err := h.caseService.AddResponse(c.Request.Context(), caseID, &user.ID, req.Message)
	if err != nil {
		log.Errorf("AddResponse: failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "追加回复失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated})
}
