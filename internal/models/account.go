package models

import (
	"github.com/shopspring/decimal"
)

// 账户类型
const (
	AccountTypeRegistered = "registered" // 注册用户账户
	AccountTypeGuest      = "guest"      // 游客会话账户
)

// Account 付款账户表
// 余额只允许在账本操作内变更，每次变更同时写入一条 CreditTransaction。
type Account struct {
	BaseModel
	SessionID string          `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	Type      string          `gorm:"size:20;default:'guest'" json:"type"` // registered, guest
	Name      string          `gorm:"size:100" json:"name"`
	Balance   decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"balance"`
	Status    string          `gorm:"size:20;default:'active'" json:"status"` // active, closed
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}

// IsActive 检查账户是否可用
func (a *Account) IsActive() bool {
	return a.Status == "active"
}
