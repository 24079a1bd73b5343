package model

import "time"

// 商品所属业务领域的固定枚举。
const (
	DomainElectronics = "electronics"
	DomainFashion     = "fashion"
	DomainGrocery     = "grocery"
	DomainHome        = "home"
	DomainBeauty      = "beauty"
	DomainTravel      = "travel"
	DomainOther       = "other"
)

// Order 对应于数据库中的 'orders' 表。
// OrderID 是面向用户的业务单号，在同一用户下唯一。
type Order struct {
	ID     uint `gorm:"primaryKey" json:"-"`
	UserID uint `gorm:"index:idx_user_order,unique;not null" json:"userId"`
	// OrderID 是业务单号，聊天与工单都用它来引用订单。
	OrderID       string    `gorm:"type:varchar(64);index:idx_user_order,unique;not null" json:"orderId"`
	Status        string    `gorm:"type:varchar(32);not null" json:"status"`
	TotalAmount   float64   `gorm:"not null" json:"totalAmount"`
	PaymentMethod string    `gorm:"type:varchar(32)" json:"paymentMethod"`
	OrderDate     time.Time `json:"orderDate"`

	// 配送信息。
	DeliveryAddress      string    `gorm:"type:varchar(255)" json:"deliveryAddress"`
	DeliveryPincode      string    `gorm:"type:varchar(16)" json:"deliveryPincode"`
	ExpectedDeliveryDate time.Time `json:"expectedDeliveryDate"`

	// Products 按 position 升序排列。工单通过订单内的位置下标引用商品，
	// 下标寻址依赖这里的顺序稳定。
	Products []Product `gorm:"foreignKey:OrderRef" json:"products"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// RecomputeTotal 根据商品明细重算订单总额：totalAmount = Σ price·quantity。
func (o *Order) RecomputeTotal() {
	var total float64
	for _, p := range o.Products {
		total += p.Price * float64(p.Quantity)
	}
	o.TotalAmount = total
}

// ProductAt 返回订单内指定位置的商品。下标越界时返回 nil，调用方必须
// 把越界当作校验失败处理，不允许静默截断。
func (o *Order) ProductAt(index int) *Product {
	if index < 0 || index >= len(o.Products) {
		return nil
	}
	return &o.Products[index]
}

// Product 对应于数据库中的 'order_products' 表。
type Product struct {
	ID       uint `gorm:"primaryKey" json:"-"`
	OrderRef uint `gorm:"index;not null" json:"-"`
	// Position 是商品在订单内的位置下标，从 0 开始。
	Position int     `gorm:"not null" json:"position"`
	Name     string  `gorm:"type:varchar(255);not null" json:"name"`
	Quantity int     `gorm:"not null" json:"quantity"`
	Price    float64 `gorm:"not null" json:"price"`
	// Domain 是固定枚举中的业务领域标签。
	Domain string `gorm:"type:varchar(32);not null;default:other" json:"domain"`
}

func (Product) TableName() string {
	return "order_products"
}
