package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"shop-assist-go/internal/model"
)

func seedOrder(orderRepo *memOrderRepo, userID uint) {
	orderRepo.put(userID, model.Order{
		UserID:        userID,
		OrderID:       "ORD-1001",
		Status:        "delivered",
		PaymentMethod: "card",
		OrderDate:     time.Now().AddDate(0, 0, -7),
		Products: []model.Product{
			{Position: 0, Name: "Wireless Headphones", Quantity: 1, Price: 79.99, Domain: model.DomainElectronics},
			{Position: 1, Name: "Phone Case", Quantity: 2, Price: 9.99, Domain: model.DomainElectronics},
		},
		TotalAmount: 99.97,
	})
}

func TestCaseService_OpenOrUpdateCreates(t *testing.T) {
	caseRepo := newMemCaseRepo()
	orderRepo := newMemOrderRepo()
	svc := NewCaseService(caseRepo, orderRepo, nil)

	filed, created, err := svc.OpenOrUpdate(context.Background(), CaseUpsertParams{
		UserID:       1,
		OrderID:      "ORD-1001",
		ProductIndex: 0,
		Description:  "arrived damaged",
		Priority:     model.PriorityLow,
		Responses: []model.CaseResponse{
			{Message: "User: it's broken"},
			{Message: "Bot: sorry to hear that"},
		},
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, filed.ID)
	assert.Equal(t, model.CaseStatusOpen, filed.Status)

	stored, err := caseRepo.FindByID(filed.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Responses, 2)
}

func TestCaseService_OpenOrUpdateRefreshesExisting(t *testing.T) {
	caseRepo := newMemCaseRepo()
	orderRepo := newMemOrderRepo()
	svc := NewCaseService(caseRepo, orderRepo, nil)
	ctx := context.Background()

	first, created, err := svc.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 0,
		Description: "arrived damaged", Priority: model.PriorityLow,
		Responses: []model.CaseResponse{{Message: "User: broken"}},
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 0,
		Description: "still not working, want a refund", Priority: model.PriorityHigh,
		Responses: []model.CaseResponse{{Message: "User: refund please"}},
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	stored, err := caseRepo.FindByID(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "still not working, want a refund", stored.Description)
	assert.Equal(t, model.PriorityHigh, stored.Priority)
	assert.Len(t, stored.Responses, 2)
}

func TestCaseService_ResolvedCaseReopens(t *testing.T) {
	caseRepo := newMemCaseRepo()
	orderRepo := newMemOrderRepo()
	svc := NewCaseService(caseRepo, orderRepo, nil)
	ctx := context.Background()

	filed, _, err := svc.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 0,
		Description: "damaged", Priority: model.PriorityLow,
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, filed.ID, model.CaseStatusResolved)
	require.NoError(t, err)

	reopened, created, err := svc.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 0,
		Description: "broke again", Priority: model.PriorityLow,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, model.CaseStatusOpen, reopened.Status)
}

// raceCaseRepo 模拟并发竞争：FindByTriple 看不到记录，但 Create 撞上
// 唯一索引并读回先写入者。
type raceCaseRepo struct {
	*memCaseRepo
	winner *model.Case
}

func (r *raceCaseRepo) FindByTriple(uint, string, int) (*model.Case, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *raceCaseRepo) Create(*model.Case) (*model.Case, bool, error) {
	cp := *r.winner
	return &cp, false, nil
}

func TestCaseService_DuplicateKeyFallsBackToUpdate(t *testing.T) {
	inner := newMemCaseRepo()
	winner := &model.Case{
		ID: "winner-id", UserID: 1, OrderID: "ORD-1001", ProductIndex: 0,
		Description: "original", Priority: model.PriorityLow, Status: model.CaseStatusOpen,
	}
	created, wasNew, err := inner.Create(winner)
	require.NoError(t, err)
	require.True(t, wasNew)

	repo := &raceCaseRepo{memCaseRepo: inner, winner: created}
	svc := NewCaseService(repo, newMemOrderRepo(), nil)

	filed, createdNow, err := svc.OpenOrUpdate(context.Background(), CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 0,
		Description: "updated by loser", Priority: model.PriorityHigh,
		Responses: []model.CaseResponse{{Message: "User: hello"}},
	})

	require.NoError(t, err)
	assert.False(t, createdNow)
	assert.Equal(t, "winner-id", filed.ID)

	stored, err := inner.FindByID("winner-id")
	require.NoError(t, err)
	assert.Equal(t, "updated by loser", stored.Description)
	assert.Len(t, stored.Responses, 1)
}

func TestCaseService_FileForUser(t *testing.T) {
	caseRepo := newMemCaseRepo()
	orderRepo := newMemOrderRepo()
	seedOrder(orderRepo, 1)
	svc := NewCaseService(caseRepo, orderRepo, nil)

	filed, err := svc.FileForUser(context.Background(), 1, "ORD-1001", 0, "I want a refund, it is defective")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, filed.Priority)

	stored, err := caseRepo.FindByID(filed.ID)
	require.NoError(t, err)
	require.Len(t, stored.Responses, 1)
	require.NotNil(t, stored.Responses[0].AuthorID)
	assert.Equal(t, uint(1), *stored.Responses[0].AuthorID)
}

func TestCaseService_FileForUserInvalidTarget(t *testing.T) {
	orderRepo := newMemOrderRepo()
	seedOrder(orderRepo, 1)
	svc := NewCaseService(newMemCaseRepo(), orderRepo, nil)
	ctx := context.Background()

	_, err := svc.FileForUser(ctx, 1, "NO-SUCH-ORDER", 0, "broken")
	assert.True(t, errors.Is(err, ErrInvalidOrderOrProduct))

	// 下标越界同样拒绝，不做截断
	_, err = svc.FileForUser(ctx, 1, "ORD-1001", 99, "broken")
	assert.True(t, errors.Is(err, ErrInvalidOrderOrProduct))
}

func TestCaseService_UpdateStatusValidation(t *testing.T) {
	svc := NewCaseService(newMemCaseRepo(), newMemOrderRepo(), nil)

	_, err := svc.UpdateStatus(context.Background(), "any-id", "closed")
	assert.Error(t, err)
}

func TestCaseService_ApplyProductChange(t *testing.T) {
	caseRepo := newMemCaseRepo()
	orderRepo := newMemOrderRepo()
	seedOrder(orderRepo, 1)
	svc := NewCaseService(caseRepo, orderRepo, nil)
	ctx := context.Background()

	filed, _, err := svc.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 1,
		Description: "wrong quantity", Priority: model.PriorityLow,
	})
	require.NoError(t, err)

	qty := 1
	updated, err := svc.ApplyProductChange(ctx, filed.ID, model.ProductChange{Quantity: &qty})
	require.NoError(t, err)
	require.NotNil(t, updated.ProductChanges)

	order, err := orderRepo.FindByUserAndOrderID(1, "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, 1, order.Products[1].Quantity)
	// 总额按明细重算：79.99*1 + 9.99*1
	assert.InDelta(t, 89.98, order.TotalAmount, 0.001)
}

func TestCaseService_ApplyProductChangeStaleIndex(t *testing.T) {
	caseRepo := newMemCaseRepo()
	orderRepo := newMemOrderRepo()
	seedOrder(orderRepo, 1)
	svc := NewCaseService(caseRepo, orderRepo, nil)
	ctx := context.Background()

	filed, _, err := svc.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID: 1, OrderID: "ORD-1001", ProductIndex: 5,
		Description: "stale", Priority: model.PriorityLow,
	})
	require.NoError(t, err)

	qty := 1
	_, err = svc.ApplyProductChange(ctx, filed.ID, model.ProductChange{Quantity: &qty})
	assert.True(t, errors.Is(err, ErrInvalidOrderOrProduct))
}
