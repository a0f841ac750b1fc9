package models

import (
	"github.com/shopspring/decimal"
)

// 交易类型
const (
	TransactionTypeCoinInsert     = "coin_insert"     // 投币入账
	TransactionTypePrintDeduction = "print_deduction" // 打印扣款
)

// CreditTransaction 账本流水表
// 每次余额变更写入一条，带变更前后快照，创建后不再修改。
type CreditTransaction struct {
	BaseModel
	AccountID     uint             `gorm:"not null;index" json:"account_id"`
	RefNo         string           `gorm:"uniqueIndex;size:64;not null" json:"ref_no"`
	Type          string           `gorm:"size:50;not null;index" json:"type"` // coin_insert, print_deduction
	Amount        decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal  `gorm:"type:decimal(10,2)" json:"balance_before"`
	BalanceAfter  decimal.Decimal  `gorm:"type:decimal(10,2)" json:"balance_after"`
	PrintJobID    *uint            `gorm:"index" json:"print_job_id,omitempty"`
	DeviceID      string           `gorm:"size:100" json:"device_id,omitempty"`
	CoinValue     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"coin_value,omitempty"` // 硬件上报的面值
	CoinCount     int              `gorm:"default:0" json:"coin_count"`
	Description   string           `gorm:"size:500" json:"description"`
	Verified      bool             `gorm:"default:true" json:"verified"`
	Metadata      JSONMap          `gorm:"type:json" json:"metadata,omitempty"`
}

// TableName 指定表名
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// IsCredit 是否为入账交易
func (t *CreditTransaction) IsCredit() bool {
	return t.Type == TransactionTypeCoinInsert
}
