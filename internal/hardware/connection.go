package hardware

import (
	"io"
	"sync"

	"github.com/pisoprint/kiosk/internal/config"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/logger"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// ConnectionManager 串口连接管理接口
// 持有串口句柄：连接/断开、非阻塞轮询读、写、设备标识。
// 一个连接同一时刻只归一个通信服务所有。
type ConnectionManager interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	// Read 读取当前可用的字节，无数据时返回空切片（不是错误）
	Read() ([]byte, error)
	Write(data []byte) error
	DeviceID() string
}

// SerialConnection 投币器串口连接
type SerialConnection struct {
	cfg       *config.SerialConfig
	port      *serial.Port
	connected bool
	mu        sync.Mutex
	buf       []byte
	log       *zap.Logger
}

// NewSerialConnection 创建串口连接管理器
func NewSerialConnection(cfg *config.SerialConfig) *SerialConnection {
	return &SerialConnection{
		cfg: cfg,
		buf: make([]byte, 256),
		log: logger.GetModuleLogger("serial"),
	}
}

// Connect 打开串口
func (c *SerialConnection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	// 解析校验位
	parity := serial.ParityNone
	switch c.cfg.Parity {
	case "O", "odd":
		parity = serial.ParityOdd
	case "E", "even":
		parity = serial.ParityEven
	}

	// 配置串口；ReadTimeout 很短，使单次读取成为非阻塞轮询
	cfg := &serial.Config{
		Name:        c.cfg.Port,
		Baud:        c.cfg.BaudRate,
		Size:        byte(c.cfg.DataBits),
		Parity:      parity,
		StopBits:    serial.StopBits(c.cfg.StopBits),
		ReadTimeout: c.cfg.ReadTimeout,
	}

	port, err := serial.OpenPort(cfg)
	if err != nil {
		c.log.Error("打开串口失败",
			zap.String("port", c.cfg.Port),
			zap.Error(err))
		return apperrors.Wrap(err, apperrors.ErrSerialPortOpen)
	}

	c.port = port
	c.connected = true

	c.log.Info("串口连接成功",
		zap.String("port", c.cfg.Port),
		zap.Int("baud_rate", c.cfg.BaudRate),
		zap.String("device_id", c.cfg.DeviceID))

	return nil
}

// Disconnect 关闭串口
func (c *SerialConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	if c.port != nil {
		if err := c.port.Close(); err != nil {
			c.log.Error("关闭串口失败", zap.Error(err))
			return err
		}
	}

	c.connected = false
	c.port = nil

	c.log.Info("串口已断开")
	return nil
}

// IsConnected 检查连接状态
func (c *SerialConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Read 读取当前可用字节
// 超时（无数据）与连接丢失都返回空结果，由下一轮轮询自然重试。
func (c *SerialConnection) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.port == nil {
		return nil, nil
	}

	n, err := c.port.Read(c.buf)
	if err != nil {
		// ReadTimeout 到期返回 io.EOF，视为"无新数据"
		if err == io.EOF {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrSerialPortRead)
	}
	if n == 0 {
		return nil, nil
	}

	data := make([]byte, n)
	copy(data, c.buf[:n])
	return data, nil
}

// Write 写入字节
func (c *SerialConnection) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.port == nil {
		return apperrors.New(apperrors.ErrDeviceOffline)
	}

	if _, err := c.port.Write(data); err != nil {
		return apperrors.Wrap(err, apperrors.ErrSerialPortWrite)
	}
	return nil
}

// DeviceID 返回设备标识
func (c *SerialConnection) DeviceID() string {
	return c.cfg.DeviceID
}
