package hardware

import (
	"sync"
	"time"
)

// HealthMonitor 链路健康监控
// 跟踪最近一次心跳时间、设备上报的状态文本和消息计数，
// 提供基于心跳新鲜度的存活判定。
type HealthMonitor struct {
	mu               sync.RWMutex
	lastHeartbeat    *time.Time
	lastStatus       string
	messageCount     uint64
	heartbeatTimeout time.Duration
	now              func() time.Time
}

// HealthSnapshot 健康状态快照
type HealthSnapshot struct {
	Alive         bool       `json:"alive"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	LastStatus    string     `json:"last_status"`
	MessageCount  uint64     `json:"message_count"`
}

// NewHealthMonitor 创建健康监控，timeout 为心跳超时阈值
func NewHealthMonitor(timeout time.Duration) *HealthMonitor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HealthMonitor{
		heartbeatTimeout: timeout,
		now:              time.Now,
	}
}

// RecordHeartbeat 记录一次心跳
func (h *HealthMonitor) RecordHeartbeat() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.lastHeartbeat = &now
}

// RecordStatus 记录设备状态文本
func (h *HealthMonitor) RecordStatus(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastStatus = status
}

// IncrementMessages 消息计数加一，每条分发的事件调用一次
func (h *HealthMonitor) IncrementMessages() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messageCount++
}

// IsAlive 心跳是否在超时窗口内
func (h *HealthMonitor) IsAlive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastHeartbeat == nil {
		return false
	}
	return h.now().Sub(*h.lastHeartbeat) <= h.heartbeatTimeout
}

// Snapshot 返回当前健康状态快照
func (h *HealthMonitor) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := HealthSnapshot{
		LastStatus:   h.lastStatus,
		MessageCount: h.messageCount,
	}
	if h.lastHeartbeat != nil {
		hb := *h.lastHeartbeat
		snapshot.LastHeartbeat = &hb
		snapshot.Alive = h.now().Sub(hb) <= h.heartbeatTimeout
	}
	return snapshot
}
