package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pisoprint/kiosk/internal/notify"
	"go.uber.org/zap"
)

// 消息类型
const (
	MessageTypePaymentReceived = "payment_received"
	MessageTypeJobCompleted    = "job_completed"
)

// 每个客户端的发送队列长度
const clientSendBuffer = 64

// Message 推送给终端界面的消息
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// client 一条客户端连接
// 连接只由自己的写循环写，广播方只往 send 队列投递。
type client struct {
	conn *websocket.Conn
	send chan Message
	done chan struct{}
}

// Hub WebSocket推送中心
// 终端界面通过WebSocket订阅投币与打印完成事件，Hub 负责广播。
// 同时实现通知接口，直接挂到核心的通知链上。广播可能同时来自
// 串口轮询和对账定时器，每条连接由独立的写循环串行化写出。
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]bool
	writeTimeout time.Duration
	log          *zap.Logger
}

// NewHub 创建推送中心
func NewHub(writeTimeout time.Duration, log *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		clients:      make(map[*client]bool),
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// register 注册客户端连接并启动其写循环
func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan Message, clientSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	go h.writePump(c)

	h.log.Info("WebSocket客户端接入", zap.Int("online", count))
	return c
}

// unregister 注销客户端连接，可安全重复调用
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.done)
	c.conn.Close()
	h.log.Info("WebSocket客户端断开", zap.Int("online", count))
}

// writePump 客户端写循环，连接的唯一写入方
func (h *Hub) writePump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// Broadcast 向所有客户端广播一条消息
// 只投递到各自的发送队列；队列满说明客户端已不消费，直接踢掉。
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("消息序列化失败", zap.String("type", msgType), zap.Error(err))
		return
	}

	msg := Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		case <-c.done:
		default:
			h.log.Warn("客户端发送队列已满，断开连接")
			h.unregister(c)
		}
	}
}

// OnlineCount 当前在线客户端数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PaymentReceived 广播收款事件
func (h *Hub) PaymentReceived(event notify.PaymentReceivedEvent) {
	h.Broadcast(MessageTypePaymentReceived, gin.H{
		"account_id": event.Account.ID,
		"amount":     event.Amount.StringFixed(2),
		"coin_value": event.CoinValue.StringFixed(2),
		"balance":    event.Account.Balance.StringFixed(2),
		"ref_no":     event.Transaction.RefNo,
	})
}

// JobCompleted 广播打印完成事件
func (h *Hub) JobCompleted(event notify.JobCompletedEvent) {
	h.Broadcast(MessageTypeJobCompleted, gin.H{
		"job_id":         event.Job.ID,
		"job_no":         event.Job.JobNo,
		"spooler_job_id": event.Job.SpoolerJobID,
		"status":         event.Job.Status,
	})
}

var _ notify.Notifier = (*Hub)(nil)

// WebSocketHandler WebSocket接入处理器
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *Hub, readBufferSize, writeBufferSize int, log *zap.Logger) *WebSocketHandler {
	if readBufferSize <= 0 {
		readBufferSize = 1024
	}
	if writeBufferSize <= 0 {
		writeBufferSize = 1024
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// 终端界面与服务同机部署
				return true
			},
		},
		log: log,
	}
}

// Serve 升级连接并保持到客户端断开
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("WebSocket升级失败", zap.Error(err))
		return
	}

	cl := h.hub.register(conn)

	// 只推不收，读循环用于感知断开
	go func() {
		defer h.hub.unregister(cl)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
