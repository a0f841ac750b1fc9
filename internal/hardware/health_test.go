package hardware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestHealthMonitor_Liveness 测试心跳新鲜度判定
func TestHealthMonitor_Liveness(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	monitor := NewHealthMonitor(30 * time.Second)
	monitor.now = func() time.Time { return now }

	// 从未收到心跳
	assert.False(t, monitor.IsAlive())

	monitor.RecordHeartbeat()
	assert.True(t, monitor.IsAlive())

	// 窗口边缘仍然存活
	now = now.Add(30 * time.Second)
	assert.True(t, monitor.IsAlive())

	// 超过窗口后失活
	now = now.Add(time.Second)
	assert.False(t, monitor.IsAlive())

	// 新心跳恢复存活
	monitor.RecordHeartbeat()
	assert.True(t, monitor.IsAlive())
}

// TestHealthMonitor_Snapshot 测试状态快照
func TestHealthMonitor_Snapshot(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	monitor := NewHealthMonitor(30 * time.Second)
	monitor.now = func() time.Time { return now }

	snapshot := monitor.Snapshot()
	assert.False(t, snapshot.Alive)
	assert.Nil(t, snapshot.LastHeartbeat)
	assert.Equal(t, uint64(0), snapshot.MessageCount)

	monitor.RecordHeartbeat()
	monitor.RecordStatus("READY")
	monitor.IncrementMessages()
	monitor.IncrementMessages()

	snapshot = monitor.Snapshot()
	assert.True(t, snapshot.Alive)
	assert.Equal(t, now, *snapshot.LastHeartbeat)
	assert.Equal(t, "READY", snapshot.LastStatus)
	assert.Equal(t, uint64(2), snapshot.MessageCount)
}

// TestHealthMonitor_DefaultTimeout 测试非法超时回落默认值
func TestHealthMonitor_DefaultTimeout(t *testing.T) {
	monitor := NewHealthMonitor(0)
	assert.Equal(t, 30*time.Second, monitor.heartbeatTimeout)
}
