package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pisoprint/kiosk/internal/hardware"
	"github.com/pisoprint/kiosk/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HardwareHandler 硬件状态处理器
type HardwareHandler struct {
	comm       *hardware.CommService
	devices    repository.DeviceStatusRepository
	serialLogs repository.SerialLogRepository
	log        *zap.Logger
}

// NewHardwareHandler 创建硬件状态处理器
// comm 允许为 nil（串口禁用的部署），此时只提供落库的历史数据。
func NewHardwareHandler(comm *hardware.CommService, db *gorm.DB, log *zap.Logger) *HardwareHandler {
	return &HardwareHandler{
		comm:       comm,
		devices:    repository.NewDeviceStatusRepository(db),
		serialLogs: repository.NewSerialLogRepository(db),
		log:        log,
	}
}

// GetStatus 查询投币器链路状态
func (h *HardwareHandler) GetStatus(c *gin.Context) {
	if h.comm == nil {
		respondOK(c, gin.H{"enabled": false})
		return
	}

	status := h.comm.GetStatus()
	respondOK(c, gin.H{
		"enabled":        true,
		"healthy":        h.comm.IsHealthy(),
		"device_id":      status.DeviceID,
		"connected":      status.Connected,
		"alive":          status.Alive,
		"last_heartbeat": status.LastHeartbeat,
		"last_status":    status.LastStatus,
		"message_count":  status.MessageCount,
	})
}

// ListDevices 列出所有设备状态
func (h *HardwareHandler) ListDevices(c *gin.Context) {
	devices, err := h.devices.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, devices)
}

// ListSerialLogs 查询最近的串口日志
func (h *HardwareHandler) ListSerialLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	logs, err := h.serialLogs.FindRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, logs)
}
