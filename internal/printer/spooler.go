package printer

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pisoprint/kiosk/internal/config"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/logger"
	"github.com/pisoprint/kiosk/internal/models"
	"go.uber.org/zap"
)

// SubmitRequest 提交到打印队列的参数
type SubmitRequest struct {
	PrinterID   string
	FilePath    string
	Copies      int
	PaperSize   string
	ColorMode   string
	Orientation string
}

// SpoolerGateway 打印队列网关接口
// 封装与系统打印队列（CUPS）的全部交互，核心逻辑不直接碰 shell。
type SpoolerGateway interface {
	// Submit 提交文件，返回队列侧任务ID（如 "EPSON-L3150-123"）
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	// ListActive 列出队列中未完成的任务ID集合
	ListActive(ctx context.Context) (map[string]bool, error)
	// Cancel 取消队列中的任务
	Cancel(ctx context.Context, spoolerJobID string) error
}

// "request id is EPSON-L3150-123 (1 file(s))"
var requestIDPattern = regexp.MustCompile(`request id is (\S+)`)

// CUPSSpooler 基于 lp/lpstat/cancel 命令行的队列网关
type CUPSSpooler struct {
	cfg *config.PrintingConfig
	log *zap.Logger

	// 可注入以便测试，默认走 exec
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

// NewCUPSSpooler 创建CUPS队列网关
func NewCUPSSpooler(cfg *config.PrintingConfig) *CUPSSpooler {
	s := &CUPSSpooler{
		cfg: cfg,
		log: logger.GetModuleLogger("spooler"),
	}
	s.runCommand = s.execCommand
	return s
}

// execCommand 执行外部命令并返回合并输出
func (s *CUPSSpooler) execCommand(ctx context.Context, name string, args ...string) (string, error) {
	timeout := s.cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()

	logger.LogSpoolerCommand(name+" "+strings.Join(args, " "), string(output), err)

	if err != nil {
		return string(output), apperrors.Wrapf(err, apperrors.ErrSpoolerCommand,
			"%s: %s", name, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Submit 调用 lp 提交打印任务
func (s *CUPSSpooler) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	copies := req.Copies
	if copies <= 0 {
		copies = 1
	}
	paperSize := req.PaperSize
	if paperSize == "" {
		paperSize = s.cfg.PaperSize
	}

	args := []string{
		"-d", req.PrinterID,
		"-n", fmt.Sprintf("%d", copies),
		"-o", "media=" + paperSize,
		"-o", "fit-to-page",
	}

	// 黑白与灰度都走灰度通道，只有彩色任务用RGB
	if req.ColorMode == models.ColorModeColor {
		args = append(args, "-o", "ColorModel=RGB")
	} else {
		args = append(args, "-o", "ColorModel=Gray")
	}

	// CUPS: 3=portrait, 4=landscape
	if req.Orientation == models.OrientationLandscape {
		args = append(args, "-o", "orientation-requested=4")
	} else {
		args = append(args, "-o", "orientation-requested=3")
	}

	args = append(args, req.FilePath)

	output, err := s.runCommand(ctx, s.cfg.SubmitCommand, args...)
	if err != nil {
		return "", err
	}

	matches := requestIDPattern.FindStringSubmatch(output)
	if len(matches) < 2 {
		return "", apperrors.Newf(apperrors.ErrSpoolerCommand,
			"无法从输出解析任务ID: %s", strings.TrimSpace(output))
	}
	return matches[1], nil
}

// ListActive 调用 lpstat 列出未完成任务
// 每行第一列是队列任务ID，其余是属主/大小/时间，忽略。
func (s *CUPSSpooler) ListActive(ctx context.Context) (map[string]bool, error) {
	output, err := s.runCommand(ctx, s.cfg.QueueCommand, "-W", "not-completed", "-o")
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		active[fields[0]] = true
	}
	return active, nil
}

// Cancel 调用 cancel 取消队列任务
func (s *CUPSSpooler) Cancel(ctx context.Context, spoolerJobID string) error {
	_, err := s.runCommand(ctx, s.cfg.CancelCommand, spoolerJobID)
	return err
}
