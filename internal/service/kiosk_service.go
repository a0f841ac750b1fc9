package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pisoprint/kiosk/internal/credit"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/printer"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KioskService 自助终端业务服务
// 串联投币入账与打印提交：维护当前会话账户，投币器的钱进当前
// 会话，付款完成后整单提交打印并结算。
type KioskService struct {
	db       *gorm.DB
	credit   *credit.Manager
	printing *printer.Manager
	accounts repository.AccountRepository
	txs      repository.TransactionRepository
	log      *zap.Logger

	mu             sync.Mutex
	currentSession string
}

// NewKioskService 创建终端服务
func NewKioskService(
	db *gorm.DB,
	creditMgr *credit.Manager,
	printingMgr *printer.Manager,
	log *zap.Logger,
) *KioskService {
	return &KioskService{
		db:       db,
		credit:   creditMgr,
		printing: printingMgr,
		accounts: repository.NewAccountRepository(db),
		txs:      repository.NewTransactionRepository(db),
		log:      log,
	}
}

// StartSession 开启新会话
// 创建游客账户并将其设为当前会话，后续投币进此账户。
func (s *KioskService) StartSession(ctx context.Context) (*models.Account, error) {
	account := &models.Account{
		SessionID: uuid.NewString(),
		Type:      models.AccountTypeGuest,
		Balance:   decimal.Zero,
		Status:    "active",
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.currentSession = account.SessionID
	s.mu.Unlock()

	s.log.Info("会话已开启",
		zap.String("session_id", account.SessionID),
		zap.Uint("account_id", account.ID))
	return account, nil
}

// EndSession 结束当前会话
// 余额清零（未用完的投币不结转），会话账户留存作审计。
func (s *KioskService) EndSession(ctx context.Context) error {
	s.mu.Lock()
	sessionID := s.currentSession
	s.currentSession = ""
	s.mu.Unlock()

	if sessionID == "" {
		return nil
	}

	account, err := s.accounts.FindBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.credit.ResetSession(ctx, account.ID)
}

// CurrentAccount 返回当前会话账户，没有活动会话时自动开启一个
// 投币可能先于任何界面操作到达，此时钱也不能丢。
func (s *KioskService) CurrentAccount(ctx context.Context) (*models.Account, error) {
	s.mu.Lock()
	sessionID := s.currentSession
	s.mu.Unlock()

	if sessionID != "" {
		account, err := s.accounts.FindBySessionID(ctx, sessionID)
		if err == nil {
			return account, nil
		}
		if !apperrors.Is(err, apperrors.ErrAccountNotFound) {
			return nil, err
		}
	}
	return s.StartSession(ctx)
}

// HandleCoin 投币入账（串口通信服务的入账回调）
func (s *KioskService) HandleCoin(ctx context.Context, deviceID string, amount decimal.Decimal) error {
	account, err := s.CurrentAccount(ctx)
	if err != nil {
		return err
	}

	coinValue := amount
	_, err = s.credit.AddCredits(ctx, account.ID, amount, "coin insert", &credit.AddOptions{
		DeviceID:  deviceID,
		CoinValue: &coinValue,
		CoinCount: 1,
	})
	return err
}

// Quote 预估一次打印的费用
func (s *KioskService) Quote(pages, copies int, colorMode string) decimal.Decimal {
	return s.printing.Pricing().Cost(pages, copies, colorMode)
}

// VerifyPayment 付款校验（打印任务管理器的提交前守卫）
// 余额未覆盖费用时返回付款未完成错误。
func (s *KioskService) VerifyPayment(ctx context.Context, accountID uint, amount decimal.Decimal) error {
	balance, err := s.credit.GetBalance(ctx, accountID)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return apperrors.Newf(apperrors.ErrPaymentIncomplete,
			"需要 %s，已投 %s", amount.StringFixed(2), balance.StringFixed(2))
	}
	return nil
}

// PayAndPrint 付款并提交打印
// 流程：付款校验（管理器内置守卫）→ 提交到打印队列 → 同一事务内
// 扣款并清零会话余额。提交失败的任务已以 failed 状态落库；提交成功
// 后结算失败属于需要人工对账的严重故障，只记日志不回滚物理打印。
func (s *KioskService) PayAndPrint(ctx context.Context, req printer.JobRequest) (*models.PrintJob, error) {
	account, err := s.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	req.AccountID = account.ID

	job, err := s.printing.SubmitJob(ctx, req)
	if err != nil {
		return job, err
	}

	jobID := job.ID
	_, err = s.credit.SettleSession(ctx, account.ID, job.Cost,
		"print job "+job.JobNo, &jobID)
	if err != nil {
		s.log.Error("打印结算失败，需人工对账",
			zap.String("job_no", job.JobNo),
			zap.Uint("account_id", account.ID),
			zap.String("cost", job.Cost.StringFixed(2)),
			zap.Error(err))
		return job, err
	}

	s.mu.Lock()
	s.currentSession = ""
	s.mu.Unlock()

	return job, nil
}

// GetJobStatus 查询打印任务状态
func (s *KioskService) GetJobStatus(ctx context.Context, jobID uint) (*models.PrintJob, error) {
	return s.printing.GetJobStatus(ctx, jobID)
}

// CancelJob 取消打印任务
func (s *KioskService) CancelJob(ctx context.Context, jobID uint) (*models.PrintJob, error) {
	return s.printing.CancelJob(ctx, jobID)
}

// RetryJob 重试打印任务（一律拒绝）
func (s *KioskService) RetryJob(ctx context.Context, jobID uint) error {
	return s.printing.RetryJob(ctx, jobID)
}

// GetBalance 查询当前会话余额
func (s *KioskService) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	account, err := s.CurrentAccount(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetDailyStats 查询指定日期的营收统计
func (s *KioskService) GetDailyStats(ctx context.Context, date time.Time) (*repository.RevenueStats, error) {
	return s.txs.GetDailyStatistics(ctx, date)
}
