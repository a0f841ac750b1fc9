package hardware

import (
	"github.com/shopspring/decimal"
)

// EventType 协议帧类型（封闭枚举）
type EventType int

const (
	EventCoin      EventType = iota // COIN:<amount> 投币
	EventStatus                     // STATUS:<text> 设备状态
	EventError                      // ERROR:<text> 设备故障
	EventHeartbeat                  // HEARTBEAT 心跳
)

// String 返回帧类型名称
func (t EventType) String() string {
	switch t {
	case EventCoin:
		return "COIN"
	case EventStatus:
		return "STATUS"
	case EventError:
		return "ERROR"
	case EventHeartbeat:
		return "HEARTBEAT"
	}
	return "UNKNOWN"
}

// Event 一条解码后的协议帧
// 变体由 Type 决定：Coin 携带金额，Status/Error 携带文本，Heartbeat 无负载。
// 解析产生，通信服务消费一次后丢弃，不持久化。
type Event struct {
	Type   EventType
	Amount decimal.Decimal // 仅 EventCoin 有效
	Text   string          // 仅 EventStatus/EventError 有效
	Raw    string          // 原始帧内容
}

// NewCoinEvent 创建投币事件
func NewCoinEvent(amount decimal.Decimal, raw string) Event {
	return Event{Type: EventCoin, Amount: amount, Raw: raw}
}

// NewStatusEvent 创建状态事件
func NewStatusEvent(text string, raw string) Event {
	return Event{Type: EventStatus, Text: text, Raw: raw}
}

// NewErrorEvent 创建故障事件
func NewErrorEvent(text string, raw string) Event {
	return Event{Type: EventError, Text: text, Raw: raw}
}

// NewHeartbeatEvent 创建心跳事件
func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, Raw: "HEARTBEAT"}
}
