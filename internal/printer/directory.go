package printer

import (
	"context"
	"strings"

	"github.com/pisoprint/kiosk/internal/logger"
	"go.uber.org/zap"
)

// PrinterInfo 一台已安装打印机
type PrinterInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// PrinterDirectory 打印机目录接口
// 枚举系统已安装的打印机及其在线状态，供选择器做故障转移。
type PrinterDirectory interface {
	ListPrinters(ctx context.Context) ([]PrinterInfo, error)
}

// CUPSDirectory 基于 lpstat -p 的打印机目录
type CUPSDirectory struct {
	spooler *CUPSSpooler
	log     *zap.Logger
}

// NewCUPSDirectory 创建CUPS打印机目录，复用队列网关的命令执行
func NewCUPSDirectory(spooler *CUPSSpooler) *CUPSDirectory {
	return &CUPSDirectory{
		spooler: spooler,
		log:     logger.GetModuleLogger("spooler"),
	}
}

// ListPrinters 列出打印机
// lpstat -p 每台一行："printer <id> is idle. ..." 或
// "printer <id> disabled since ..."，disabled 视为离线。
func (d *CUPSDirectory) ListPrinters(ctx context.Context) ([]PrinterInfo, error) {
	output, err := d.spooler.runCommand(ctx, d.spooler.cfg.QueueCommand, "-p")
	if err != nil {
		return nil, err
	}

	var printers []PrinterInfo
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "printer" {
			continue
		}

		printers = append(printers, PrinterInfo{
			ID:     fields[1],
			Name:   fields[1],
			Online: !strings.Contains(line, "disabled"),
		})
	}
	return printers, nil
}

// StaticDirectory 固定打印机目录（测试与单机部署）
type StaticDirectory struct {
	Printers []PrinterInfo
}

// ListPrinters 返回固定列表
func (d *StaticDirectory) ListPrinters(ctx context.Context) ([]PrinterInfo, error) {
	return d.Printers, nil
}

var _ PrinterDirectory = (*CUPSDirectory)(nil)
var _ PrinterDirectory = (*StaticDirectory)(nil)
