package model

import "time"

// ChatLogEntry 代表存储在 Redis 中的单轮问答记录。
// CaseID 初始为空字符串；当该轮对话被折叠进某条工单的回复线程后，
// 会被回填为工单 ID，防止后续重复折叠。
type ChatLogEntry struct {
	Prompt string `json:"prompt"`
	Reply  string `json:"reply"`
	// 发送该消息时的商品上下文。
	OrderID      string    `json:"orderId"`
	ProductIndex int       `json:"productIndex"`
	CaseID       string    `json:"caseId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SelectedProduct 代表存储在 Redis 中的用户当前聊天商品上下文。
// 每个用户同一时刻只有一个生效值，登录、登出或显式取消选择时清除。
type SelectedProduct struct {
	OrderID      string    `json:"orderId"`
	ProductIndex int       `json:"productIndex"`
	ProductName  string    `json:"productName"`
	SelectedAt   time.Time `json:"selectedAt"`
}

// FAQ 对应于数据库中的 'faqs' 表。Embedding 以 JSON 形式存储问句向量，
// 启动种子阶段写入，匹配时全量载入内存做余弦最近邻。
type FAQ struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Question string `gorm:"type:text;not null" json:"question"`
	Answer   string `gorm:"type:text;not null" json:"answer"`
	Domain   string `gorm:"type:varchar(32)" json:"domain"`
	// Embedding 是序列化后的 []float32。
	Embedding string    `gorm:"type:longtext" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (FAQ) TableName() string {
	return "faqs"
}
