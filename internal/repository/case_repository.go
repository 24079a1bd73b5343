package repository

import (
	"strings"

	"gorm.io/gorm"
	"shop-assist-go/internal/model"
)

// CaseRepository 接口定义了工单数据的持久化操作。
// (user_id, order_id, product_index) 三元组上有唯一索引，并发创建撞到
// 约束时由 Create 做一次读回重试，调用方拿到的是先写入者。
type CaseRepository interface {
	Create(c *model.Case) (*model.Case, bool, error)
	Save(c *model.Case) error
	FindByID(caseID string) (*model.Case, error)
	FindByTriple(userID uint, orderID string, productIndex int) (*model.Case, error)
	AppendResponses(caseID string, responses []model.CaseResponse) error
	ListByUser(userID uint) ([]model.Case, error)
	ListAll(status, priority string) ([]model.Case, error)
}

type caseRepository struct {
	db *gorm.DB
}

// NewCaseRepository 创建一个新的 CaseRepository 实例。
func NewCaseRepository(db *gorm.DB) CaseRepository {
	return &caseRepository{db: db}
}

// Create 尝试创建一条新工单。若唯一索引冲突（另一请求抢先创建了同一
// 三元组的工单），读回已存在的记录返回。第二个返回值表示是否真的新建。
func (r *caseRepository) Create(c *model.Case) (*model.Case, bool, error) {
	err := r.db.Create(c).Error
	if err == nil {
		return c, true, nil
	}
	if isDuplicateKeyErr(err) {
		existing, ferr := r.FindByTriple(c.UserID, c.OrderID, c.ProductIndex)
		if ferr != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return nil, false, err
}

// isDuplicateKeyErr 判断是否为唯一约束冲突。
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}

// Save 更新一条已存在的工单（含其直接字段，不级联回复）。
func (r *caseRepository) Save(c *model.Case) error {
	return r.db.Omit("Responses").Save(c).Error
}

// FindByID 按工单 ID 查找，回复按时间升序预加载。
func (r *caseRepository) FindByID(caseID string) (*model.Case, error) {
	var c model.Case
	err := r.db.
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", caseID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByTriple 按 (userID, orderID, productIndex) 查找工单。
func (r *caseRepository) FindByTriple(userID uint, orderID string, productIndex int) (*model.Case, error) {
	var c model.Case
	err := r.db.
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("user_id = ? AND order_id = ? AND product_index = ?", userID, orderID, productIndex).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AppendResponses 向工单的回复线程追加若干条记录。
func (r *caseRepository) AppendResponses(caseID string, responses []model.CaseResponse) error {
	if len(responses) == 0 {
		return nil
	}
	for i := range responses {
		responses[i].CaseID = caseID
	}
	return r.db.Create(&responses).Error
}

// ListByUser 返回某个用户的全部工单。
func (r *caseRepository) ListByUser(userID uint) ([]model.Case, error) {
	var cases []model.Case
	err := r.db.
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&cases).Error
	return cases, err
}

// ListAll 返回全部工单，可按状态和优先级过滤，供管理员使用。
func (r *caseRepository) ListAll(status, priority string) ([]model.Case, error) {
	db := r.db.
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if priority != "" {
		db = db.Where("priority = ?", priority)
	}
	var cases []model.Case
	err := db.Order("updated_at DESC").Find(&cases).Error
	return cases, err
}
