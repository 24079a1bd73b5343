package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"shop-assist-go/internal/model"
	"shop-assist-go/internal/service"
	"shop-assist-go/pkg/log"
)

// AdminHandler 负责管理员后台的用户与工单管理 API。
type AdminHandler struct {
	userService service.UserService
	caseService service.CaseService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(userService service.UserService, caseService service.CaseService) *AdminHandler {
	return &AdminHandler{userService: userService, caseService: caseService}
}

// ListUsers 分页返回全部用户。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	users, total, err := h.userService.ListUsers(page, pageSize)
	if err != nil {
		log.Errorf("Admin ListUsers: failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取用户列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"data": gin.H{"users": users, "total": total, "page": page, "pageSize": pageSize},
	})
}

// ListCases 返回全部工单，支持按状态和优先级过滤。
func (h *AdminHandler) ListCases(c *gin.Context) {
	status := c.Query("status")
	priority := c.Query("priority")
	if status != "" && !model.ValidCaseStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工单状态过滤条件"})
		return
	}
	if priority != "" && !model.ValidPriority(priority) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的优先级过滤条件"})
		return
	}

	cases, err := h.caseService.ListAll(status, priority)
	if err != nil {
		log.Errorf("Admin ListCases: failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取工单列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": cases})
}

// GetCase 返回单个工单及其全部回复。
func (h *AdminHandler) GetCase(c *gin.Context) {
	caseID := c.Param("caseId")
	found, err := h.caseService.GetByID(caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工单不存在"})
			return
		}
		log.Errorf("Admin GetCase: failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取工单失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": found})
}

// UpdateStatusRequest 定义了更新工单状态 API 的请求体结构。
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 更新工单状态。
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	caseID := c.Param("caseId")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !model.ValidCaseStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工单状态"})
		return
	}

	updated, err := h.caseService.UpdateStatus(c.Request.Context(), caseID, req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工单不存在"})
			return
		}
		log.Errorf("Admin UpdateStatus: failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新工单状态失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated})
}

// UpdatePriorityRequest 定义了更新工单优先级 API 的请求体结构。
type UpdatePriorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

// UpdatePriority 更新工单优先级。
func (h *AdminHandler) UpdatePriority(c *gin.Context) {
	caseID := c.Param("caseId")

	var req UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil || !model.ValidPriority(req.Priority) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的优先级"})
		return
	}

	updated, err := h.caseService.UpdatePriority(c.Request.Context(), caseID, req.Priority)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工单不存在"})
			return
		}
		log.Errorf("Admin UpdatePriority: failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新工单优先级失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated})
}

// AddResponse 以管理员身份向工单追加一条回复。
func (h *AdminHandler) AddResponse(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	caseID := c.Param("caseId")

	var req CaseResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：message 不能为空"})
		return
	}

	updated, err := h.caseService.AddResponse(c.Request.Context(), caseID, &user.ID, req.Message)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工单不存在"})
			return
		}
		log.Errorf("Admin AddResponse: failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "追加回复失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated})
}

// ApplyProductChangeRequest 定义了应用商品修改 API 的请求体结构。
// 三个字段均可选，但不允许全部为空。
type ApplyProductChangeRequest struct {
	Name     *string  `json:"name"`
	Quantity *int     `json:"quantity"`
	Price    *float64 `json:"price"`
}

// ApplyProductChange 把工单里暂存的商品修改落到对应订单的商品上。
func (h *AdminHandler) ApplyProductChange(c *gin.Context) {
	caseID := c.Param("caseId")

	var req ApplyProductChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	if req.Name == nil && req.Quantity == nil && req.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "至少需要指定一项商品修改"})
		return
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "商品数量不能为负数"})
		return
	}
	if req.Price != nil && *req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "商品价格不能为负数"})
		return
	}

	updated, err := h.caseService.ApplyProductChange(c.Request.Context(), caseID, model.ProductChange{
		Name:     req.Name,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "工单不存在"})
			return
		}
		if errors.Is(err, service.ErrInvalidOrderOrProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("Admin ApplyProductChange: failed for caseId=%s: %v", caseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "应用商品修改失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated})
}
