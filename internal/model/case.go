package model

import "time"

// 工单优先级。
const (
	PriorityHigh = "high"
	PriorityLow  = "low"
)

// 工单状态流转：open → in-progress → resolved（resolved 可被重新打开）。
const (
	CaseStatusOpen       = "open"
	CaseStatusInProgress = "in-progress"
	CaseStatusResolved   = "resolved"
)

// Case 对应于数据库中的 'cases' 表，代表一条客服工单。
// 一条工单绑定到 (user_id, order_id, product_index) 三元组，且同一三元组
// 至多存在一条工单，由唯一索引保证。
//
// 注意：ProductIndex 是商品在订单内的位置下标而不是稳定 ID。订单商品列表
// 被修改后，历史下标可能失效，使用前必须按当前订单数据重新校验。
type Case struct {
	// ID 是工单的 UUID 主键。
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID uint   `gorm:"uniqueIndex:idx_case_triple;not null" json:"userId"`
	// OrderID 是业务单号（Order.OrderID），与 ProductIndex 一起定位工单针对的商品。
	OrderID      string `gorm:"type:varchar(64);uniqueIndex:idx_case_triple;not null" json:"orderId"`
	ProductIndex int    `gorm:"uniqueIndex:idx_case_triple;not null" json:"productIndex"`

	Description string `gorm:"type:text;not null" json:"description"`
	Priority    string `gorm:"type:varchar(10);not null;default:low" json:"priority"`
	Status      string `gorm:"type:varchar(20);not null;default:open" json:"status"`

	// ProductChanges 暂存管理员对商品的修改（JSON 编码的 ProductChange），
	// 应用后写回商品并重算订单总额。
	ProductChanges *string `gorm:"type:text" json:"productChanges,omitempty"`

	Responses []CaseResponse `gorm:"foreignKey:CaseID" json:"responses"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Case) TableName() string {
	return "cases"
}

// CaseResponse 对应于数据库中的 'case_responses' 表，是工单回复线程中的一条记录。
type CaseResponse struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	CaseID string `gorm:"type:varchar(36);index;not null" json:"caseId"`
	// AuthorID 为回复者的用户 ID；为 NULL 表示系统/机器人或从聊天记录
	// 镜像进来的用户消息。
	AuthorID  *uint     `json:"authorId"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (CaseResponse) TableName() string {
	return "case_responses"
}

// ProductChange 描述管理员处理工单时对商品字段的修改。
// 指针字段为 nil 表示该字段保持不变。
type ProductChange struct {
	Name     *string  `json:"name,omitempty"`
	Quantity *int     `json:"quantity,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

// ValidPriority 判断给定字符串是否为合法的优先级取值。
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityLow
}

// ValidCaseStatus 判断给定字符串是否为合法的工单状态。
func ValidCaseStatus(s string) bool {
	return s == CaseStatusOpen || s == CaseStatusInProgress || s == CaseStatusResolved
}
