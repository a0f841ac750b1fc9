package printer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pisoprint/kiosk/internal/config"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/notify"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// JobRequest 打印请求
type JobRequest struct {
	AccountID   uint   `json:"account_id"`
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	Pages       int    `json:"pages"`
	Copies      int    `json:"copies"`
	ColorMode   string `json:"color_mode"`
	Orientation string `json:"orientation"`
	PaperSize   string `json:"paper_size"`
}

// PaymentVerifier 付款校验接口
// 提交前由账本侧确认余额已覆盖费用，未付清返回付款未完成错误。
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, accountID uint, amount decimal.Decimal) error
}

// Manager 打印任务管理器
// 打印任务状态的唯一写入方：提交、轮询对账、取消都经过这里。
type Manager struct {
	jobs      repository.PrintJobRepository
	spooler   SpoolerGateway
	directory PrinterDirectory
	pricing   *Pricing
	verifier  PaymentVerifier
	notifier  notify.Notifier
	cfg       *config.PrintingConfig
	log       *zap.Logger
}

// NewManager 创建打印任务管理器
func NewManager(
	jobs repository.PrintJobRepository,
	spooler SpoolerGateway,
	directory PrinterDirectory,
	pricing *Pricing,
	verifier PaymentVerifier,
	notifier notify.Notifier,
	cfg *config.PrintingConfig,
	log *zap.Logger,
) *Manager {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Manager{
		jobs:      jobs,
		spooler:   spooler,
		directory: directory,
		pricing:   pricing,
		verifier:  verifier,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

// Pricing 返回计价器
func (m *Manager) Pricing() *Pricing {
	return m.pricing
}

// SetPaymentVerifier 设置付款校验器
// 账本侧与打印侧互相引用，装配时后注入打破环。
func (m *Manager) SetPaymentVerifier(verifier PaymentVerifier) {
	m.verifier = verifier
}

// SelectPrinter 选择目标打印机
// 顺序：默认打印机在线 > 任一在线打印机 > 默认打印机（即使离线）>
// 任一已安装打印机。目录为空时返回无可用打印机错误。
func (m *Manager) SelectPrinter(ctx context.Context) (string, error) {
	printers, err := m.directory.ListPrinters(ctx)
	if err != nil {
		// 目录枚举失败时退回配置的默认打印机
		if m.cfg.DefaultPrinter != "" {
			m.log.Warn("打印机枚举失败，使用默认打印机",
				zap.String("printer", m.cfg.DefaultPrinter),
				zap.Error(err))
			return m.cfg.DefaultPrinter, nil
		}
		return "", apperrors.Wrap(err, apperrors.ErrNoPrinterAvailable)
	}

	defaultID := m.cfg.DefaultPrinter
	var firstOnline, firstKnown string

	for _, p := range printers {
		if firstKnown == "" {
			firstKnown = p.ID
		}
		if p.Online {
			if p.ID == defaultID {
				return p.ID, nil
			}
			if firstOnline == "" {
				firstOnline = p.ID
			}
		}
	}

	if firstOnline != "" {
		return firstOnline, nil
	}
	if defaultID != "" {
		for _, p := range printers {
			if p.ID == defaultID {
				return p.ID, nil
			}
		}
	}
	if firstKnown != "" {
		return firstKnown, nil
	}

	return "", apperrors.New(apperrors.ErrNoPrinterAvailable)
}

// SubmitJob 提交打印任务
// 付款校验通过后创建任务记录再调用队列提交：提交失败的任务以
// failed 状态落库后才向上返回错误，保证每次物理提交尝试都有审计记录。
func (m *Manager) SubmitJob(ctx context.Context, req JobRequest) (*models.PrintJob, error) {
	if req.Pages <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "pages %d", req.Pages)
	}
	if req.Copies <= 0 {
		req.Copies = 1
	}
	if req.PaperSize == "" {
		req.PaperSize = m.cfg.PaperSize
	}
	if req.ColorMode == "" {
		req.ColorMode = models.ColorModeBW
	}
	if req.Orientation == "" {
		req.Orientation = models.OrientationPortrait
	}

	cost := m.pricing.Cost(req.Pages, req.Copies, req.ColorMode)

	if m.verifier != nil {
		if err := m.verifier.VerifyPayment(ctx, req.AccountID, cost); err != nil {
			return nil, err
		}
	}

	printerID, err := m.SelectPrinter(ctx)
	if err != nil {
		return nil, err
	}

	job := &models.PrintJob{
		AccountID:   req.AccountID,
		JobNo:       newJobNo(),
		FileName:    req.FileName,
		FilePath:    req.FilePath,
		Pages:       req.Pages,
		Copies:      req.Copies,
		ColorMode:   req.ColorMode,
		Orientation: req.Orientation,
		PaperSize:   req.PaperSize,
		Cost:        cost,
		PrinterID:   printerID,
		Status:      models.PrintJobStatusSubmitting,
	}
	if err := m.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	spoolerJobID, err := m.spooler.Submit(ctx, SubmitRequest{
		PrinterID:   printerID,
		FilePath:    req.FilePath,
		Copies:      req.Copies,
		PaperSize:   req.PaperSize,
		ColorMode:   req.ColorMode,
		Orientation: req.Orientation,
	})
	if err != nil {
		// 失败先落库再上抛，起止时间都落在失败时刻
		now := time.Now()
		job.Status = models.PrintJobStatusFailed
		job.ErrorMessage = err.Error()
		job.StartedAt = &now
		job.CompletedAt = &now
		if saveErr := m.jobs.Save(ctx, job); saveErr != nil {
			m.log.Error("失败任务落库失败",
				zap.String("job_no", job.JobNo),
				zap.Error(saveErr))
		}
		m.log.Error("打印任务提交失败",
			zap.String("job_no", job.JobNo),
			zap.String("printer", printerID),
			zap.Error(err))
		return job, apperrors.Wrap(err, apperrors.ErrPrintJobSubmission)
	}

	now := time.Now()
	job.SpoolerJobID = spoolerJobID
	job.Status = models.PrintJobStatusPrinting
	job.StartedAt = &now
	if err := m.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	m.log.Info("打印任务已提交",
		zap.String("job_no", job.JobNo),
		zap.String("printer", printerID),
		zap.String("spooler_job_id", spoolerJobID),
		zap.String("cost", cost.StringFixed(2)))

	return job, nil
}

// GetJobStatus 查询任务状态
// 进行中的任务顺带对一次账：队列中已不存在视为打印完成。
// 队列查询失败不升级，返回数据库中的当前状态。
func (m *Manager) GetJobStatus(ctx context.Context, jobID uint) (*models.PrintJob, error) {
	job, err := m.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() || job.SpoolerJobID == "" {
		return job, nil
	}

	active, err := m.spooler.ListActive(ctx)
	if err != nil {
		m.log.Warn("打印队列查询失败，返回缓存状态",
			zap.String("job_no", job.JobNo),
			zap.Error(err))
		return job, nil
	}

	if finishedInQueue(active, job.SpoolerJobID) {
		if err := m.markCompleted(ctx, job); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// finishedInQueue 队列完成判定
// lpstat 只列未完成任务，打完的任务直接从列表消失；
// 队列里已不存在即视为打印完成。
func finishedInQueue(active map[string]bool, spoolerJobID string) bool {
	return spoolerJobID != "" && !active[spoolerJobID]
}

// ReconcileActive 对账全部进行中的任务
// 由外部定时器周期调用；队列查询失败时跳过本轮。
func (m *Manager) ReconcileActive(ctx context.Context) error {
	jobs, err := m.jobs.FindActive(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	active, err := m.spooler.ListActive(ctx)
	if err != nil {
		m.log.Warn("打印队列查询失败，跳过本轮对账", zap.Error(err))
		return nil
	}

	for _, job := range jobs {
		if !finishedInQueue(active, job.SpoolerJobID) {
			continue
		}
		if err := m.markCompleted(ctx, job); err != nil {
			m.log.Error("任务完成状态落库失败",
				zap.String("job_no", job.JobNo),
				zap.Error(err))
		}
	}
	return nil
}

// markCompleted 标记任务完成并发出完成通知
func (m *Manager) markCompleted(ctx context.Context, job *models.PrintJob) error {
	now := time.Now()
	job.Status = models.PrintJobStatusCompleted
	job.CompletedAt = &now
	if err := m.jobs.Save(ctx, job); err != nil {
		return err
	}

	m.notifier.JobCompleted(notify.JobCompletedEvent{Job: job})

	m.log.Info("打印任务完成",
		zap.String("job_no", job.JobNo),
		zap.String("spooler_job_id", job.SpoolerJobID))
	return nil
}

// CancelJob 取消任务
// 取消永远成功：队列侧的取消失败只记日志（任务可能已经打完），
// 本地状态一律置为 cancelled。终态任务原样返回。
func (m *Manager) CancelJob(ctx context.Context, jobID uint) (*models.PrintJob, error) {
	job, err := m.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}

	if job.SpoolerJobID != "" {
		if err := m.spooler.Cancel(ctx, job.SpoolerJobID); err != nil {
			m.log.Warn("队列取消失败",
				zap.String("job_no", job.JobNo),
				zap.String("spooler_job_id", job.SpoolerJobID),
				zap.Error(err))
		}
	}

	now := time.Now()
	job.Status = models.PrintJobStatusCancelled
	job.CompletedAt = &now
	if err := m.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	m.log.Info("打印任务已取消", zap.String("job_no", job.JobNo))
	return job, nil
}

// RetryJob 重试任务
// 物理打印不可幂等重放：纸张可能已经走过打印头，重提会重复计费。
// 一律拒绝，调用方应引导用户重新下单。
func (m *Manager) RetryJob(ctx context.Context, jobID uint) error {
	job, err := m.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	return apperrors.Newf(apperrors.ErrRetryNotSupported, "job no %s", job.JobNo)
}

// newJobNo 生成任务号
func newJobNo() string {
	return "PJ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
