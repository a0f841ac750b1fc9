package models

import (
	"time"

	"gorm.io/gorm"
)

// DeviceStatus 设备状态表
// 记录投币器串口链路的最近状态，由健康监控快照定期刷新。
type DeviceStatus struct {
	BaseModel
	DeviceID     string     `gorm:"uniqueIndex;size:100;not null" json:"device_id"`
	DeviceName   string     `gorm:"size:100" json:"device_name"`
	Type         string     `gorm:"size:50" json:"type"` // coin_acceptor, printer
	Status       string     `gorm:"size:20;default:'offline'" json:"status"` // online, offline, error
	Port         string     `gorm:"size:100" json:"port"`
	LastStatus   string     `gorm:"size:255" json:"last_status"`
	LastPingAt   *time.Time `json:"last_ping_at,omitempty"`
	MessageCount uint64     `gorm:"default:0" json:"message_count"`
	Extra        JSONMap    `gorm:"type:json" json:"extra,omitempty"`
}

// TableName 指定表名
func (DeviceStatus) TableName() string {
	return "device_statuses"
}

// SerialLogDirection 串口日志方向
const (
	SerialLogDirectionReceive = "RECEIVE"
	SerialLogDirectionSend    = "SEND"
)

// SerialLog 串口通信日志表
// 保存每一条收到的协议帧与回复的应答，用于审计嘈杂信道。
type SerialLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	DeviceID  string `gorm:"size:100;index" json:"device_id"`
	Direction string `gorm:"type:varchar(10);index;not null" json:"direction"` // SEND/RECEIVE
	Frame     string `gorm:"type:varchar(255)" json:"frame"`                   // 帧内容（如 "COIN:5.00"）
	FrameType string `gorm:"type:varchar(20);index" json:"frame_type"`         // COIN/STATUS/ERROR/HEARTBEAT/ACK/NAK
	Dropped   bool   `gorm:"default:false" json:"dropped"`                     // 是否因格式非法被丢弃
	ErrorMsg  string `gorm:"type:text" json:"error_msg,omitempty"`
	Timestamp int64  `gorm:"index" json:"timestamp"` // Unix时间戳（毫秒）
}

// TableName 指定表名
func (SerialLog) TableName() string {
	return "serial_logs"
}

// BeforeCreate 创建前的钩子
func (s *SerialLog) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixMilli()
	}
	return nil
}
