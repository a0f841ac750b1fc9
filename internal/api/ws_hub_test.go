package api

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newHubServer 起一个只挂WebSocket路由的测试服务
func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(time.Second, zap.NewNop())
	handler := NewWebSocketHandler(hub, 1024, 1024, zap.NewNop())

	router := gin.New()
	router.GET("/ws", handler.Serve)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return hub, server
}

// dialHub 接入测试服务
func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitOnline 等待在线数达到预期
func waitOnline(t *testing.T, hub *Hub, want int) {
	deadline := time.Now().Add(2 * time.Second)
	for hub.OnlineCount() != want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, want, hub.OnlineCount())
}

// TestHub_BroadcastDelivers 测试广播消息送达客户端
func TestHub_BroadcastDelivers(t *testing.T) {
	hub, server := newHubServer(t)
	conn := dialHub(t, server)
	waitOnline(t, hub, 1)

	hub.Broadcast(MessageTypePaymentReceived, gin.H{"amount": "5.00"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypePaymentReceived, msg.Type)
	assert.Contains(t, string(msg.Data), "5.00")
	assert.NotZero(t, msg.Timestamp)
}

// TestHub_ConcurrentBroadcast 测试多goroutine同时广播
// 投币轮询和对账定时器会同时触发推送，写必须经由每连接的
// 写循环串行化，并发广播不允许崩溃或丢连接。
func TestHub_ConcurrentBroadcast(t *testing.T) {
	hub, server := newHubServer(t)
	connA := dialHub(t, server)
	connB := dialHub(t, server)
	waitOnline(t, hub, 2)

	const broadcasts = 20
	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast(MessageTypeJobCompleted, gin.H{"job_no": "PJ-1"})
		}()
	}
	wg.Wait()

	// 每个客户端都收到全部消息
	for _, conn := range []*websocket.Conn{connA, connB} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for i := 0; i < broadcasts; i++ {
			var msg Message
			require.NoError(t, conn.ReadJSON(&msg))
			assert.Equal(t, MessageTypeJobCompleted, msg.Type)
		}
	}

	assert.Equal(t, 2, hub.OnlineCount())
}

// TestHub_UnregisterOnClose 测试客户端断开后被移除
func TestHub_UnregisterOnClose(t *testing.T) {
	hub, server := newHubServer(t)
	conn := dialHub(t, server)
	waitOnline(t, hub, 1)

	conn.Close()
	waitOnline(t, hub, 0)

	// 广播到空集合不出错
	hub.Broadcast(MessageTypePaymentReceived, gin.H{"amount": "1.00"})
}
