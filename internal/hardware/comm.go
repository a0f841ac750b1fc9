package hardware

import (
	"context"
	"strings"

	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 应答帧
const (
	replyAckCoinPrefix  = "ACK:COIN:"
	replyNakCoinPrefix  = "NAK:COIN:"
	replyAckHeartbeat   = "ACK:HEARTBEAT"
	replyCoinProcessing = "ERROR:COIN_PROCESSING"
)

// CoinIntake 投币入账入口
// 通信服务收到合法投币帧后调用，由上层决定记账到哪个账户。
type CoinIntake interface {
	HandleCoin(ctx context.Context, deviceID string, amount decimal.Decimal) error
}

// CommService 串口通信服务
// 驱动一条投币器链路：轮询读取、解析分发、回复应答、维护健康状态。
// Poll 由外部定时器驱动，单次调用处理当前可读的全部数据后立即返回。
type CommService struct {
	conn       ConnectionManager
	parser     *Parser
	monitor    *HealthMonitor
	intake     CoinIntake
	serialLogs repository.SerialLogRepository
	devices    repository.DeviceStatusRepository
	log        *zap.Logger

	// 跨轮询保留的残帧
	remainder []byte
}

// NewCommService 创建通信服务
// serialLogs/devices 允许为 nil（测试或不落库的部署）。
func NewCommService(
	conn ConnectionManager,
	parser *Parser,
	monitor *HealthMonitor,
	intake CoinIntake,
	serialLogs repository.SerialLogRepository,
	devices repository.DeviceStatusRepository,
	log *zap.Logger,
) *CommService {
	return &CommService{
		conn:       conn,
		parser:     parser,
		monitor:    monitor,
		intake:     intake,
		serialLogs: serialLogs,
		devices:    devices,
		log:        log,
	}
}

// Start 建立串口连接
func (s *CommService) Start() error {
	return s.conn.Connect()
}

// Stop 断开串口连接
func (s *CommService) Stop() error {
	return s.conn.Disconnect()
}

// Poll 执行一次轮询周期
// 读取可用数据、拼接残帧、解析并逐条分发。无数据时什么都不做。
// 读错误只记日志不上抛，下一个周期自然重试。
func (s *CommService) Poll(ctx context.Context) {
	data, err := s.conn.Read()
	if err != nil {
		s.log.Warn("串口读取失败", zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	if len(s.remainder) > 0 {
		data = append(s.remainder, data...)
		s.remainder = nil
	}

	events, remainder := s.parser.Parse(data)
	s.remainder = remainder

	for _, event := range events {
		s.dispatch(ctx, event)
	}
}

// dispatch 分发单条事件
func (s *CommService) dispatch(ctx context.Context, event Event) {
	s.monitor.IncrementMessages()
	s.recordFrame(ctx, models.SerialLogDirectionReceive, event.Raw, event.Type.String(), false, "")

	switch event.Type {
	case EventCoin:
		s.handleCoin(ctx, event)

	case EventStatus:
		s.monitor.RecordStatus(event.Text)
		s.log.Info("设备状态上报", zap.String("status", event.Text))

	case EventError:
		// 设备侧故障只记录，不影响链路健康判定
		s.log.Error("设备故障上报", zap.String("error", event.Text))

	case EventHeartbeat:
		s.monitor.RecordHeartbeat()
		s.writeFrame(ctx, replyAckHeartbeat)
	}
}

// handleCoin 处理投币事件
// 入账成功回 ACK:COIN:<金额>，失败回 NAK:COIN:<金额>，投币器据此
// 把拒收和它发出的帧对上号；入账过程的 panic 被吸收并回复
// 处理故障帧，投币器据此退币，轮询循环不中断。
func (s *CommService) handleCoin(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("投币处理发生panic",
				zap.Any("panic", r),
				zap.String("frame", event.Raw))
			s.writeFrame(ctx, replyCoinProcessing)
		}
	}()

	if err := s.intake.HandleCoin(ctx, s.conn.DeviceID(), event.Amount); err != nil {
		s.log.Error("投币入账失败",
			zap.String("amount", event.Amount.StringFixed(2)),
			zap.Error(err))
		s.writeFrame(ctx, replyNakCoinPrefix+event.Amount.StringFixed(2))
		return
	}

	s.writeFrame(ctx, replyAckCoinPrefix+event.Amount.StringFixed(2))
}

// writeFrame 写出一条应答帧并记录发送日志
func (s *CommService) writeFrame(ctx context.Context, frame string) {
	if err := s.conn.Write([]byte(frame + "\n")); err != nil {
		s.log.Warn("应答写入失败",
			zap.String("frame", frame),
			zap.Error(err))
		s.recordFrame(ctx, models.SerialLogDirectionSend, frame, frameTypeOf(frame), false, err.Error())
		return
	}
	s.recordFrame(ctx, models.SerialLogDirectionSend, frame, frameTypeOf(frame), false, "")
}

// recordFrame 持久化一条串口日志，仓储缺省时跳过
func (s *CommService) recordFrame(ctx context.Context, direction, frame, frameType string, dropped bool, errMsg string) {
	if s.serialLogs == nil {
		return
	}

	entry := &models.SerialLog{
		DeviceID:  s.conn.DeviceID(),
		Direction: direction,
		Frame:     frame,
		FrameType: frameType,
		Dropped:   dropped,
		ErrorMsg:  errMsg,
	}
	if err := s.serialLogs.Create(ctx, entry); err != nil {
		s.log.Warn("串口日志写入失败", zap.Error(err))
	}
}

// frameTypeOf 归类发送帧的类型
func frameTypeOf(frame string) string {
	switch {
	case strings.HasPrefix(frame, replyNakCoinPrefix):
		return "NAK"
	case frame == replyCoinProcessing:
		return "ERROR"
	default:
		return "ACK"
	}
}

// LinkStatus 链路状态：健康快照之上附加连接信息
type LinkStatus struct {
	DeviceID  string `json:"device_id"`
	Connected bool   `json:"connected"`
	HealthSnapshot
}

// IsHealthy 链路是否健康：串口已连接且心跳在窗口内
func (s *CommService) IsHealthy() bool {
	return s.conn.IsConnected() && s.monitor.IsAlive()
}

// GetStatus 返回当前链路状态快照
func (s *CommService) GetStatus() LinkStatus {
	return LinkStatus{
		DeviceID:       s.conn.DeviceID(),
		Connected:      s.conn.IsConnected(),
		HealthSnapshot: s.monitor.Snapshot(),
	}
}

// SyncDeviceStatus 将健康快照刷入设备状态表
// 由外部定时器周期调用，仓储缺省时为空操作。
func (s *CommService) SyncDeviceStatus(ctx context.Context) error {
	if s.devices == nil {
		return nil
	}

	snapshot := s.monitor.Snapshot()
	status := "offline"
	if s.conn.IsConnected() {
		if snapshot.Alive {
			status = "online"
		} else {
			status = "error"
		}
	}

	record := &models.DeviceStatus{
		DeviceID:     s.conn.DeviceID(),
		DeviceName:   "coin acceptor",
		Type:         "coin_acceptor",
		Status:       status,
		LastStatus:   snapshot.LastStatus,
		LastPingAt:   snapshot.LastHeartbeat,
		MessageCount: snapshot.MessageCount,
	}
	return s.devices.Upsert(ctx, record)
}
