package repository

import (
	"gorm.io/gorm"
	"shop-assist-go/internal/model"
)

// FAQRepository 接口定义了 FAQ 数据的持久化操作。
type FAQRepository interface {
	Create(faq *model.FAQ) error
	// FindAll 按 id 升序返回全部 FAQ。匹配层的并列打破依赖这个顺序
	// （插入序，先入者胜）。
	FindAll() ([]model.FAQ, error)
	FindByQuestionAndDomain(question, domain string) (*model.FAQ, error)
}

type faqRepository struct {
	db *gorm.DB
}

// NewFAQRepository 创建一个新的 FAQRepository 实例。
func NewFAQRepository(db *gorm.DB) FAQRepository {
	return &faqRepository{db: db}
}

// Create 新增一条 FAQ。
func (r *faqRepository) Create(faq *model.FAQ) error {
	return r.db.Create(faq).Error
}

// FindAll 按 id 升序返回全部 FAQ。
func (r *faqRepository) FindAll() ([]model.FAQ, error) {
	var faqs []model.FAQ
	err := r.db.Order("id ASC").Find(&faqs).Error
	return faqs, err
}

// FindByQuestionAndDomain 查找指定问句与领域的 FAQ，用于幂等种子导入。
func (r *faqRepository) FindByQuestionAndDomain(question, domain string) (*model.FAQ, error) {
	var faq model.FAQ
	err := r.db.Where("question = ? AND domain = ?", question, domain).First(&faq).Error
	if err != nil {
		return nil, err
	}
	return &faq, nil
}
