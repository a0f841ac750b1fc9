package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pisoprint/kiosk/internal/config"
	"github.com/pisoprint/kiosk/internal/credit"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/printer"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubSpooler 队列桩：固定返回下一个任务ID
type stubSpooler struct {
	mu        sync.Mutex
	submitErr error
	nextJobID string
	active    map[string]bool
}

func (s *stubSpooler) Submit(ctx context.Context, req printer.SubmitRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return "", s.submitErr
	}
	if s.active == nil {
		s.active = make(map[string]bool)
	}
	s.active[s.nextJobID] = true
	return s.nextJobID, nil
}

func (s *stubSpooler) ListActive(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.active))
	for id := range s.active {
		out[id] = true
	}
	return out, nil
}

func (s *stubSpooler) Cancel(ctx context.Context, spoolerJobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, spoolerJobID)
	return nil
}

// KioskServiceTestSuite 终端服务测试套件
type KioskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	spooler *stubSpooler
	kiosk   *KioskService
	txs     repository.TransactionRepository
}

func (suite *KioskServiceTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.spooler = &stubSpooler{nextJobID: "EPSON-L3150-1"}

	creditMgr := credit.NewManager(suite.db, nil, zap.NewNop())
	printerMgr := printer.NewManager(
		repository.NewPrintJobRepository(suite.db),
		suite.spooler,
		&printer.StaticDirectory{Printers: []printer.PrinterInfo{
			{ID: "EPSON-L3150", Online: true},
		}},
		printer.NewPricing(&config.PricingConfig{BWPerPage: "2.00", ColorPerPage: "5.00"}),
		nil,
		nil,
		&config.PrintingConfig{DefaultPrinter: "EPSON-L3150", PaperSize: "A4"},
		zap.NewNop(),
	)

	suite.kiosk = NewKioskService(suite.db, creditMgr, printerMgr, zap.NewNop())
	printerMgr.SetPaymentVerifier(suite.kiosk)
	suite.txs = repository.NewTransactionRepository(suite.db)
}

func (suite *KioskServiceTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

// insertCoin 模拟一次投币
func (suite *KioskServiceTestSuite) insertCoin(amount string) {
	err := suite.kiosk.HandleCoin(context.Background(), "coin-acceptor-01",
		decimal.RequireFromString(amount))
	suite.Require().NoError(err)
}

// TestHandleCoin_AutoSession 测试投币自动开启会话
func (suite *KioskServiceTestSuite) TestHandleCoin_AutoSession() {
	suite.insertCoin("5.00")
	suite.insertCoin("10.00")

	balance, err := suite.kiosk.GetBalance(context.Background())
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(decimal.RequireFromString("15.00")))
}

// TestPayAndPrint 测试足额付款后的整单提交
func (suite *KioskServiceTestSuite) TestPayAndPrint() {
	ctx := context.Background()

	// 5页黑白 = 10.00，投币正好
	suite.insertCoin("10.00")

	job, err := suite.kiosk.PayAndPrint(ctx, printer.JobRequest{
		FileName: "report.pdf",
		FilePath: "/tmp/report.pdf",
		Pages:    5,
		Copies:   1,
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PrintJobStatusPrinting, job.Status)
	assert.Equal(suite.T(), "EPSON-L3150-1", job.SpoolerJobID)
	assert.True(suite.T(), job.Cost.Equal(decimal.RequireFromString("10.00")))

	// 扣款流水关联任务且余额已清零
	records, err := suite.txs.FindByPrintJobID(ctx, job.ID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, 1)
	assert.Equal(suite.T(), models.TransactionTypePrintDeduction, records[0].Type)
	assert.True(suite.T(), records[0].BalanceAfter.IsZero())

	accounts := repository.NewAccountRepository(suite.db)
	account, err := accounts.FindByID(ctx, job.AccountID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), account.Balance.IsZero())
}

// TestPayAndPrint_Underpaid 测试欠费时拒绝提交
func (suite *KioskServiceTestSuite) TestPayAndPrint_Underpaid() {
	ctx := context.Background()

	suite.insertCoin("5.00")

	_, err := suite.kiosk.PayAndPrint(ctx, printer.JobRequest{
		FilePath: "/tmp/report.pdf",
		Pages:    5,
	})
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrPaymentIncomplete))

	// 余额保留，继续投币后可成功
	balance, err := suite.kiosk.GetBalance(ctx)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(decimal.RequireFromString("5.00")))

	suite.insertCoin("5.00")
	job, err := suite.kiosk.PayAndPrint(ctx, printer.JobRequest{
		FilePath: "/tmp/report.pdf",
		Pages:    5,
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PrintJobStatusPrinting, job.Status)
}

// TestPayAndPrint_OverpayForfeited 测试多投的余额随结算清零
func (suite *KioskServiceTestSuite) TestPayAndPrint_OverpayForfeited() {
	ctx := context.Background()

	suite.insertCoin("20.00")

	job, err := suite.kiosk.PayAndPrint(ctx, printer.JobRequest{
		FilePath: "/tmp/report.pdf",
		Pages:    2, // 4.00
	})
	assert.NoError(suite.T(), err)

	accounts := repository.NewAccountRepository(suite.db)
	account, err := accounts.FindByID(ctx, job.AccountID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), account.Balance.IsZero())

	// 只有投币与扣款两条流水，清零不记账
	pagination := repository.NewPagination(1, 10)
	records, err := suite.txs.FindByAccountID(ctx, job.AccountID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, 2)
}

// TestPayAndPrint_SubmitFailureKeepsBalance 测试提交失败不扣款
func (suite *KioskServiceTestSuite) TestPayAndPrint_SubmitFailureKeepsBalance() {
	ctx := context.Background()

	suite.insertCoin("10.00")
	suite.spooler.submitErr = errors.New("lp: no such printer")

	job, err := suite.kiosk.PayAndPrint(ctx, printer.JobRequest{
		FilePath: "/tmp/report.pdf",
		Pages:    5,
	})
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrPrintJobSubmission))
	suite.Require().NotNil(job)
	assert.Equal(suite.T(), models.PrintJobStatusFailed, job.Status)

	// 钱还在，没有扣款流水
	balance, err := suite.kiosk.GetBalance(ctx)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(decimal.RequireFromString("10.00")))

	records, err := suite.txs.FindByPrintJobID(ctx, job.ID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, 0)
}

// TestEndSession 测试会话结束清零余额
func (suite *KioskServiceTestSuite) TestEndSession() {
	ctx := context.Background()

	suite.insertCoin("5.00")
	err := suite.kiosk.EndSession(ctx)
	assert.NoError(suite.T(), err)

	// 结束后新的查询开启新会话，余额从零开始
	balance, err := suite.kiosk.GetBalance(ctx)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.IsZero())
}

// TestQuote 测试询价
func (suite *KioskServiceTestSuite) TestQuote() {
	cost := suite.kiosk.Quote(3, 2, models.ColorModeColor)
	assert.True(suite.T(), cost.Equal(decimal.RequireFromString("30.00")))
}

func TestKioskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(KioskServiceTestSuite))
}
