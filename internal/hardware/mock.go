package hardware

import (
	"sync"
)

// MockConnection 模拟串口连接
// 调试模式与测试使用：Feed 注入设备侧数据，Sent 读取已写出的应答。
type MockConnection struct {
	mu        sync.Mutex
	connected bool
	deviceID  string
	pending   []byte
	sent      [][]byte
	readErr   error
	writeErr  error
}

// NewMockConnection 创建模拟连接
func NewMockConnection(deviceID string) *MockConnection {
	return &MockConnection{deviceID: deviceID}
}

// Connect 标记为已连接
func (m *MockConnection) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Disconnect 标记为已断开
func (m *MockConnection) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected 返回连接状态
func (m *MockConnection) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Read 取出全部待读数据
func (m *MockConnection) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		return nil, err
	}
	if !m.connected || len(m.pending) == 0 {
		return nil, nil
	}

	data := m.pending
	m.pending = nil
	return data, nil
}

// Write 记录写出的数据
func (m *MockConnection) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.sent = append(m.sent, buf)
	return nil
}

// DeviceID 返回设备标识
func (m *MockConnection) DeviceID() string {
	return m.deviceID
}

// Feed 注入设备侧数据，追加到待读缓冲
func (m *MockConnection) Feed(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, []byte(data)...)
}

// Sent 返回已写出的帧（字符串形式）
func (m *MockConnection) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := make([]string, 0, len(m.sent))
	for _, data := range m.sent {
		frames = append(frames, string(data))
	}
	return frames
}

// SetReadError 使下一次 Read 返回指定错误
func (m *MockConnection) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetWriteError 使后续 Write 返回指定错误
func (m *MockConnection) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}
