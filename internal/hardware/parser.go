package hardware

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 协议帧前缀
const (
	framePrefixCoin   = "COIN:"
	framePrefixStatus = "STATUS:"
	framePrefixError  = "ERROR:"
	frameHeartbeat    = "HEARTBEAT"
)

// defaultDenominations 默认接受的硬币面值（₱1/₱5/₱10/₱20）
var defaultDenominations = []decimal.Decimal{
	decimal.NewFromInt(1),
	decimal.NewFromInt(5),
	decimal.NewFromInt(10),
	decimal.NewFromInt(20),
}

// Parser 协议帧解析器
// 无状态：输入原始字节，输出按序解码的事件与未完结的尾部残帧。
// 非法或超出面值范围的帧静默丢弃——串口信道有物理噪声，丢帧不升级。
type Parser struct {
	denominations []decimal.Decimal
}

// NewParser 创建解析器，denominations 为空时使用默认面值表
func NewParser(denominations []decimal.Decimal) *Parser {
	if len(denominations) == 0 {
		denominations = defaultDenominations
	}
	return &Parser{denominations: denominations}
}

// Parse 解析一段原始字节
// 缓冲区内可能含多条换行分隔的帧，末尾不完整的帧作为 remainder
// 返回，由调用方拼接到下一次读取的数据前。
func (p *Parser) Parse(data []byte) (events []Event, remainder []byte) {
	if len(data) == 0 {
		return nil, nil
	}

	s := string(data)
	lastNewline := strings.LastIndexByte(s, '\n')
	if lastNewline < 0 {
		// 没有完整帧，全部留作残帧
		return nil, data
	}

	complete := s[:lastNewline]
	if tail := s[lastNewline+1:]; tail != "" {
		remainder = []byte(tail)
	}

	for _, line := range strings.Split(complete, "\n") {
		line = strings.TrimRight(line, "\r")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if event, ok := p.parseLine(line); ok {
			events = append(events, event)
		}
	}

	return events, remainder
}

// parseLine 解析单条帧，非法帧返回 ok=false
func (p *Parser) parseLine(line string) (Event, bool) {
	switch {
	case line == frameHeartbeat:
		return NewHeartbeatEvent(), true

	case strings.HasPrefix(line, framePrefixCoin):
		raw := strings.TrimPrefix(line, framePrefixCoin)
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return Event{}, false
		}
		if !p.isAcceptedDenomination(amount) {
			return Event{}, false
		}
		return NewCoinEvent(amount, line), true

	case strings.HasPrefix(line, framePrefixStatus):
		return NewStatusEvent(strings.TrimPrefix(line, framePrefixStatus), line), true

	case strings.HasPrefix(line, framePrefixError):
		return NewErrorEvent(strings.TrimPrefix(line, framePrefixError), line), true
	}

	return Event{}, false
}

// isAcceptedDenomination 校验金额是否为受支持的面值
// 零、负数、非面值金额一律拒绝。
func (p *Parser) isAcceptedDenomination(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	for _, d := range p.denominations {
		if amount.Equal(d) {
			return true
		}
	}
	return false
}
