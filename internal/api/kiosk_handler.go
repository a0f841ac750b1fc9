package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/printer"
	"github.com/pisoprint/kiosk/internal/service"
	"go.uber.org/zap"
)

// KioskHandler 终端业务处理器
type KioskHandler struct {
	kiosk *service.KioskService
	log   *zap.Logger
}

// NewKioskHandler 创建终端处理器
func NewKioskHandler(kiosk *service.KioskService, log *zap.Logger) *KioskHandler {
	return &KioskHandler{kiosk: kiosk, log: log}
}

// StartSession 开启会话
func (h *KioskHandler) StartSession(c *gin.Context) {
	account, err := h.kiosk.StartSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"session_id": account.SessionID,
		"account_id": account.ID,
		"balance":    account.Balance.StringFixed(2),
	})
}

// EndSession 结束会话
func (h *KioskHandler) EndSession(c *gin.Context) {
	if err := h.kiosk.EndSession(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"ended": true})
}

// GetBalance 查询当前会话余额
func (h *KioskHandler) GetBalance(c *gin.Context) {
	balance, err := h.kiosk.GetBalance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"balance": balance.StringFixed(2)})
}

// QuoteRequest 询价请求
type QuoteRequest struct {
	Pages     int    `form:"pages" binding:"required,min=1"`
	Copies    int    `form:"copies"`
	ColorMode string `form:"color_mode"`
}

// Quote 打印费用询价
func (h *KioskHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
		return
	}
	if req.Copies <= 0 {
		req.Copies = 1
	}
	if req.ColorMode == "" {
		req.ColorMode = models.ColorModeBW
	}

	cost := h.kiosk.Quote(req.Pages, req.Copies, req.ColorMode)
	respondOK(c, gin.H{
		"pages":      req.Pages,
		"copies":     req.Copies,
		"color_mode": req.ColorMode,
		"cost":       cost.StringFixed(2),
	})
}

// SubmitJobRequest 打印提交请求
type SubmitJobRequest struct {
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path" binding:"required"`
	Pages       int    `json:"pages" binding:"required,min=1"`
	Copies      int    `json:"copies"`
	ColorMode   string `json:"color_mode"`
	Orientation string `json:"orientation"`
	PaperSize   string `json:"paper_size"`
}

// SubmitJob 付款并提交打印
func (h *KioskHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
		return
	}

	job, err := h.kiosk.PayAndPrint(c.Request.Context(), printer.JobRequest{
		FileName:    req.FileName,
		FilePath:    req.FilePath,
		Pages:       req.Pages,
		Copies:      req.Copies,
		ColorMode:   req.ColorMode,
		Orientation: req.Orientation,
		PaperSize:   req.PaperSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, jobView(job))
}

// GetJob 查询打印任务状态
func (h *KioskHandler) GetJob(c *gin.Context) {
	jobID, err := parseJobID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	job, err := h.kiosk.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, jobView(job))
}

// CancelJob 取消打印任务
func (h *KioskHandler) CancelJob(c *gin.Context) {
	jobID, err := parseJobID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	job, err := h.kiosk.CancelJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, jobView(job))
}

// RetryJob 重试打印任务
func (h *KioskHandler) RetryJob(c *gin.Context) {
	jobID, err := parseJobID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.kiosk.RetryJob(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"retried": true})
}

// GetDailyStats 查询日营收统计
func (h *KioskHandler) GetDailyStats(c *gin.Context) {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam))
			return
		}
		date = parsed
	}

	stats, err := h.kiosk.GetDailyStats(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// parseJobID 解析路径中的任务ID
func parseJobID(c *gin.Context) (uint, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidParam, "job id %q", raw)
	}
	return uint(id), nil
}

// jobView 打印任务的对外视图
func jobView(job *models.PrintJob) gin.H {
	view := gin.H{
		"id":           job.ID,
		"job_no":       job.JobNo,
		"file_name":    job.FileName,
		"pages":        job.Pages,
		"copies":       job.Copies,
		"color_mode":   job.ColorMode,
		"orientation":  job.Orientation,
		"paper_size":   job.PaperSize,
		"cost":         job.Cost.StringFixed(2),
		"printer_id":   job.PrinterID,
		"status":       job.Status,
		"created_at":   job.CreatedAt,
	}
	if job.SpoolerJobID != "" {
		view["spooler_job_id"] = job.SpoolerJobID
	}
	if job.ErrorMessage != "" {
		view["error_message"] = job.ErrorMessage
	}
	if job.StartedAt != nil {
		view["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		view["completed_at"] = job.CompletedAt
	}
	return view
}
