package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 打印任务状态
const (
	PrintJobStatusSubmitting = "submitting" // 正在提交到打印队列
	PrintJobStatusPrinting   = "printing"   // 已进入打印队列
	PrintJobStatusCompleted  = "completed"  // 打印完成
	PrintJobStatusFailed     = "failed"     // 提交或打印失败
	PrintJobStatusCancelled  = "cancelled"  // 已取消
)

// 色彩模式
const (
	ColorModeBW        = "bw"
	ColorModeGrayscale = "grayscale"
	ColorModeColor     = "color"
)

// 打印方向
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// PrintJob 打印任务表
// 一次物理打印尝试。付款确认后创建，仅由打印任务管理器变更，保留作审计。
type PrintJob struct {
	BaseModel
	AccountID    uint            `gorm:"not null;index" json:"account_id"`
	JobNo        string          `gorm:"uniqueIndex;size:64;not null" json:"job_no"`
	FileName     string          `gorm:"size:255" json:"file_name"`
	FilePath     string          `gorm:"size:500;not null" json:"file_path"`
	Pages        int             `gorm:"not null" json:"pages"`
	Copies       int             `gorm:"default:1" json:"copies"`
	ColorMode    string          `gorm:"size:20;default:'bw'" json:"color_mode"`     // bw, grayscale, color
	Orientation  string          `gorm:"size:20;default:'portrait'" json:"orientation"` // portrait, landscape
	PaperSize    string          `gorm:"size:20;default:'A4'" json:"paper_size"`
	Cost         decimal.Decimal `gorm:"type:decimal(10,2)" json:"cost"`
	PrinterID    string          `gorm:"size:100" json:"printer_id"`
	SpoolerJobID string          `gorm:"size:100;index" json:"spooler_job_id,omitempty"` // 提交成功前为空
	Status       string          `gorm:"size:20;default:'submitting';index" json:"status"`
	CurrentPage  *int            `json:"current_page,omitempty"`
	ErrorMessage string          `gorm:"size:500" json:"error_message,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (PrintJob) TableName() string {
	return "print_jobs"
}

// IsTerminal 检查任务是否已处于终态
func (j *PrintJob) IsTerminal() bool {
	switch j.Status {
	case PrintJobStatusCompleted, PrintJobStatusFailed, PrintJobStatusCancelled:
		return true
	}
	return false
}
