package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"shop-assist-go/internal/model"
	"shop-assist-go/internal/repository"
	"shop-assist-go/pkg/kafka"
	"shop-assist-go/pkg/log"
)

// CaseUpsertParams 描述一次按三元组建单/更新工单的请求。
// Responses 是本次要追加进回复线程的记录（已按期望顺序排列）。
type CaseUpsertParams struct {
	UserID       uint
	OrderID      string
	ProductIndex int
	Description  string
	Priority     string
	Responses    []model.CaseResponse
}

// CaseService 定义了工单的业务操作接口。
type CaseService interface {
	// OpenOrUpdate 按 (userID, orderID, productIndex) 三元组 upsert 工单。
	// 同一三元组的并发调用被串行化，绝不会产生重复工单。
	// 第二个返回值表示本次是否新建。
	OpenOrUpdate(ctx context.Context, params CaseUpsertParams) (*model.Case, bool, error)
	// FileForUser 处理用户显式提交的建单请求：校验订单与商品下标、
	// 用分类器定优先级，然后走 OpenOrUpdate。
	FileForUser(ctx context.Context, userID uint, orderID string, productIndex int, description string) (*model.Case, error)
	ListForUser(userID uint) ([]model.Case, error)
	ListAll(status, priority string) ([]model.Case, error)
	GetByID(caseID string) (*model.Case, error)
	UpdateStatus(ctx context.Context, caseID, status string) (*model.Case, error)
	UpdatePriority(ctx context.Context, caseID, priority string) (*model.Case, error)
	AddResponse(ctx context.Context, caseID string, authorID *uint, message string) (*model.Case, error)
	// ApplyProductChange 把商品修改暂存到工单并应用到订单，重算订单总额。
	ApplyProductChange(ctx context.Context, caseID string, change model.ProductChange) (*model.Case, error)
}

type caseService struct {
	caseRepo  repository.CaseRepository
	orderRepo repository.OrderRepository
	producer  *kafka.Producer

	// tripleLocks 按三元组串行化 upsert，防止同用户双击提交时
	// 建出重复工单或丢失回复。
	mu          sync.Mutex
	tripleLocks map[string]*sync.Mutex
}

// NewCaseService 创建一个新的 CaseService 实例。producer 可为 nil（事件为可选旁路）。
func NewCaseService(caseRepo repository.CaseRepository, orderRepo repository.OrderRepository, producer *kafka.Producer) CaseService {
	return &caseService{
		caseRepo:    caseRepo,
		orderRepo:   orderRepo,
		producer:    producer,
		tripleLocks: make(map[string]*sync.Mutex),
	}
}

func (s *caseService) lockTriple(userID uint, orderID string, productIndex int) *sync.Mutex {
	key := fmt.Sprintf("%d:%s:%d", userID, orderID, productIndex)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.tripleLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.tripleLocks[key] = l
	}
	return l
}

// OpenOrUpdate 实现按三元组的 upsert 语义。
// 已存在的工单：刷新描述与优先级、追加回复、已解决的重新打开。
// 不存在：新建；若撞上唯一索引（别的请求抢先建了），落回更新路径。
func (s *caseService) OpenOrUpdate(ctx context.Context, params CaseUpsertParams) (*model.Case, bool, error) {
	l := s.lockTriple(params.UserID, params.OrderID, params.ProductIndex)
	l.Lock()
	defer l.Unlock()

	existing, err := s.caseRepo.FindByTriple(params.UserID, params.OrderID, params.ProductIndex)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if existing != nil {
		if err := s.refresh(existing, params); err != nil {
			return nil, false, err
		}
		s.publish(ctx, kafka.EventCaseUpdated, existing)
		return existing, false, nil
	}

	newCase := &model.Case{
		ID:           uuid.NewString(),
		UserID:       params.UserID,
		OrderID:      params.OrderID,
		ProductIndex: params.ProductIndex,
		Description:  params.Description,
		Priority:     params.Priority,
		Status:       model.CaseStatusOpen,
	}
	created, wasNew, err := s.caseRepo.Create(newCase)
	if err != nil {
		return nil, false, err
	}
	if !wasNew {
		// 唯一索引兜底：仓储层读回了抢先写入者，按更新处理
		if err := s.refresh(created, params); err != nil {
			return nil, false, err
		}
		s.publish(ctx, kafka.EventCaseUpdated, created)
		return created, false, nil
	}

	if err := s.caseRepo.AppendResponses(created.ID, params.Responses); err != nil {
		return nil, false, err
	}
	s.publish(ctx, kafka.EventCaseCreated, created)
	return created, true, nil
}

// refresh 是更新路径的公共部分：描述、优先级、重开、追加回复。
func (s *caseService) refresh(c *model.Case, params CaseUpsertParams) error {
	c.Description = params.Description
	c.Priority = params.Priority
	if c.Status == model.CaseStatusResolved {
		// 同一商品再次求助时重新打开已解决的工单
		c.Status = model.CaseStatusOpen
	}
	c.UpdatedAt = time.Now()
	if err := s.caseRepo.Save(c); err != nil {
		return err
	}
	return s.caseRepo.AppendResponses(c.ID, params.Responses)
}

// FileForUser 处理用户显式提交的建单请求。
// 与指令路径不同，这里的校验失败要原样返回给用户（是用户自己填的）。
func (s *caseService) FileForUser(ctx context.Context, userID uint, orderID string, productIndex int, description string) (*model.Case, error) {
	order, err := s.orderRepo.FindByUserAndOrderID(userID, orderID)
	if err != nil {
		return nil, ErrInvalidOrderOrProduct
	}
	if order.ProductAt(productIndex) == nil {
		return nil, ErrInvalidOrderOrProduct
	}

	filed, _, err := s.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID:       userID,
		OrderID:      orderID,
		ProductIndex: productIndex,
		Description:  description,
		Priority:     ClassifyPriority(description),
		Responses: []model.CaseResponse{
			{AuthorID: &userID, Message: description},
		},
	})
	if err != nil {
		return nil, err
	}
	return filed, nil
}

func (s *caseService) ListForUser(userID uint) ([]model.Case, error) {
	return s.caseRepo.ListByUser(userID)
}

func (s *caseService) ListAll(status, priority string) ([]model.Case, error) {
	return s.caseRepo.ListAll(status, priority)
}

func (s *caseService) GetByID(caseID string) (*model.Case, error) {
	return s.caseRepo.FindByID(caseID)
}

// UpdateStatus 由管理员流转工单状态。
func (s *caseService) UpdateStatus(ctx context.Context, caseID, status string) (*model.Case, error) {
	if !model.ValidCaseStatus(status) {
		return nil, fmt.Errorf("无效的工单状态: %s", status)
	}
	c, err := s.caseRepo.FindByID(caseID)
	if err != nil {
		return nil, err
	}
	c.Status = status
	if err := s.caseRepo.Save(c); err != nil {
		return nil, err
	}
	event := kafka.EventCaseUpdated
	if status == model.CaseStatusResolved {
		event = kafka.EventCaseResolved
	}
	s.publish(ctx, event, c)
	return c, nil
}

// UpdatePriority 由管理员覆盖分类器给出的优先级。
func (s *caseService) UpdatePriority(ctx context.Context, caseID, priority string) (*model.Case, error) {
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("无效的优先级: %s", priority)
	}
	c, err := s.caseRepo.FindByID(caseID)
	if err != nil {
		return nil, err
	}
	c.Priority = priority
	if err := s.caseRepo.Save(c); err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventCaseUpdated, c)
	return c, nil
}

// AddResponse 向工单回复线程追加一条人工回复。
func (s *caseService) AddResponse(ctx context.Context, caseID string, authorID *uint, message string) (*model.Case, error) {
	c, err := s.caseRepo.FindByID(caseID)
	if err != nil {
		return nil, err
	}
	resp := model.CaseResponse{AuthorID: authorID, Message: message}
	if err := s.caseRepo.AppendResponses(c.ID, []model.CaseResponse{resp}); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now()
	if err := s.caseRepo.Save(c); err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventCaseUpdated, c)
	return s.caseRepo.FindByID(caseID)
}

// ApplyProductChange 把管理员的商品修改暂存到工单并立即应用到订单。
// 订单侧会重算 totalAmount；商品下标失效时返回 ErrInvalidOrderOrProduct。
func (s *caseService) ApplyProductChange(ctx context.Context, caseID string, change model.ProductChange) (*model.Case, error) {
	c, err := s.caseRepo.FindByID(caseID)
	if err != nil {
		return nil, err
	}

	staged, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("暂存商品修改失败: %w", err)
	}
	stagedStr := string(staged)
	c.ProductChanges = &stagedStr

	if _, err := s.orderRepo.UpdateProduct(c.UserID, c.OrderID, c.ProductIndex, change); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrderOrProduct
		}
		return nil, err
	}

	if err := s.caseRepo.Save(c); err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventCaseUpdated, c)
	return c, nil
}

// publish 发布工单事件。事件是旁路通知，失败只记日志。
func (s *caseService) publish(ctx context.Context, eventType string, c *model.Case) {
	if s.producer == nil {
		return
	}
	event := kafka.CaseEvent{
		Type:         eventType,
		CaseID:       c.ID,
		UserID:       c.UserID,
		OrderID:      c.OrderID,
		ProductIndex: c.ProductIndex,
		Priority:     c.Priority,
		Status:       c.Status,
		OccurredAt:   time.Now(),
	}
	if err := s.producer.PublishCaseEvent(ctx, event); err != nil {
		log.Errorf("[CaseService] 发布工单事件失败: type=%s, caseId=%s, error: %v", eventType, c.ID, err)
	}
}
