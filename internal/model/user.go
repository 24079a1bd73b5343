// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 用户角色常量。
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 对应于数据库中的 'users' 表。
type User struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(100);not null" json:"name"`
	// Email 是登录凭证，全局唯一。
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string `gorm:"type:varchar(255);not null" json:"-"`
	// Role 为 "user" 或 "admin"。
	Role      string    `gorm:"type:varchar(20);not null;default:user" json:"role"`
	Orders    []Order   `gorm:"foreignKey:UserID" json:"orders,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// IsAdmin 判断用户是否具有管理员角色。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Sanitized 返回一个去除密码字段的副本，用于缓存和 API 响应。
func (u *User) Sanitized() User {
	clean := *u
	clean.Password = ""
	return clean
}
