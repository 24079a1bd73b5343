package repository

import (
	"gorm.io/gorm"
	"shop-assist-go/internal/model"
)

// OrderRepository 接口定义了订单数据的持久化操作。
// FindByUser / FindByUserAndOrderID 总是直接读数据库，聊天编排用它们做
// 指令校验，不允许走缓存。
type OrderRepository interface {
	FindByUser(userID uint) ([]model.Order, error)
	FindByUserAndOrderID(userID uint, orderID string) (*model.Order, error)
	// UpdateProduct 在事务内更新商品字段并重算订单总额。
	UpdateProduct(userID uint, orderID string, productIndex int, change model.ProductChange) (*model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建一个新的 OrderRepository 实例。
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// FindByUser 返回某个用户的全部订单，商品按位置升序排列。
func (r *orderRepository) FindByUser(userID uint) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		Order("order_date DESC").
		Find(&orders).Error
	return orders, err
}

// FindByUserAndOrderID 按业务单号查找某个用户的一条订单。
func (r *orderRepository) FindByUserAndOrderID(userID uint, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ? AND order_id = ?", userID, orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateProduct 应用管理员的商品修改并重算订单总额，整个过程在一个事务内。
// productIndex 越界返回 gorm.ErrRecordNotFound，调用方将其当作校验失败。
func (r *orderRepository) UpdateProduct(userID uint, orderID string, productIndex int, change model.ProductChange) (*model.Order, error) {
	var updated *model.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.
			Preload("Products", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC")
			}).
			Where("user_id = ? AND order_id = ?", userID, orderID).
			First(&order).Error; err != nil {
			return err
		}

		product := order.ProductAt(productIndex)
		if product == nil {
			return gorm.ErrRecordNotFound
		}

		if change.Name != nil {
			product.Name = *change.Name
		}
		if change.Quantity != nil {
			product.Quantity = *change.Quantity
		}
		if change.Price != nil {
			product.Price = *change.Price
		}
		if err := tx.Save(product).Error; err != nil {
			return err
		}

		order.RecomputeTotal()
		if err := tx.Model(&order).Update("total_amount", order.TotalAmount).Error; err != nil {
			return err
		}

		updated = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
