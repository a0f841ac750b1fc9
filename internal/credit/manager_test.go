package credit

import (
	"context"
	"sync"
	"testing"

	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/notify"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordingNotifier 记录收到的通知
type recordingNotifier struct {
	mu       sync.Mutex
	payments []notify.PaymentReceivedEvent
}

func (n *recordingNotifier) PaymentReceived(event notify.PaymentReceivedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, event)
}

func (n *recordingNotifier) JobCompleted(event notify.JobCompletedEvent) {}

func (n *recordingNotifier) paymentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payments)
}

// CreditManagerTestSuite 账本管理器测试套件
type CreditManagerTestSuite struct {
	suite.Suite
	db       *gorm.DB
	manager  *Manager
	notifier *recordingNotifier
	accounts repository.AccountRepository
	txs      repository.TransactionRepository
}

func (suite *CreditManagerTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.notifier = &recordingNotifier{}
	suite.manager = NewManager(suite.db, suite.notifier, zap.NewNop())
	suite.accounts = repository.NewAccountRepository(suite.db)
	suite.txs = repository.NewTransactionRepository(suite.db)
}

func (suite *CreditManagerTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

// createTestAccount 创建余额为指定值的测试账户
func (suite *CreditManagerTestSuite) createTestAccount(sessionID, balance string) *models.Account {
	account := &models.Account{
		SessionID: sessionID,
		Type:      models.AccountTypeGuest,
		Balance:   decimal.RequireFromString(balance),
		Status:    "active",
	}
	err := suite.accounts.Create(context.Background(), account)
	suite.Require().NoError(err)
	return account
}

// TestAddCredits 测试投币入账
func (suite *CreditManagerTestSuite) TestAddCredits() {
	ctx := context.Background()
	account := suite.createTestAccount("session-add", "0.00")

	coinValue := decimal.RequireFromString("5.00")
	record, err := suite.manager.AddCredits(ctx, account.ID, coinValue, "coin insert", &AddOptions{
		DeviceID:  "coin-acceptor-01",
		CoinValue: &coinValue,
		CoinCount: 1,
	})
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), record)
	assert.Equal(suite.T(), models.TransactionTypeCoinInsert, record.Type)
	assert.True(suite.T(), record.BalanceBefore.IsZero())
	assert.True(suite.T(), record.BalanceAfter.Equal(coinValue))
	assert.NotEmpty(suite.T(), record.RefNo)

	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(coinValue))

	assert.Equal(suite.T(), 1, suite.notifier.paymentCount())
}

// TestAddCredits_InvalidAmount 测试非正金额入账被拒绝
func (suite *CreditManagerTestSuite) TestAddCredits_InvalidAmount() {
	ctx := context.Background()
	account := suite.createTestAccount("session-invalid", "0.00")

	_, err := suite.manager.AddCredits(ctx, account.ID, decimal.Zero, "", nil)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInvalidAmount))

	_, err = suite.manager.AddCredits(ctx, account.ID, decimal.RequireFromString("-5.00"), "", nil)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInvalidAmount))

	assert.Equal(suite.T(), 0, suite.notifier.paymentCount())
}

// TestDeductCredits 测试打印扣款
func (suite *CreditManagerTestSuite) TestDeductCredits() {
	ctx := context.Background()
	account := suite.createTestAccount("session-deduct", "20.00")

	jobID := uint(7)
	record, err := suite.manager.DeductCredits(ctx, account.ID,
		decimal.RequireFromString("12.00"), "print job PJ-7", &jobID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TransactionTypePrintDeduction, record.Type)
	assert.True(suite.T(), record.BalanceBefore.Equal(decimal.RequireFromString("20.00")))
	assert.True(suite.T(), record.BalanceAfter.Equal(decimal.RequireFromString("8.00")))
	assert.Equal(suite.T(), &jobID, record.PrintJobID)

	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(decimal.RequireFromString("8.00")))
}

// TestDeductCredits_Insufficient 测试余额不足时不产生任何变更
func (suite *CreditManagerTestSuite) TestDeductCredits_Insufficient() {
	ctx := context.Background()
	account := suite.createTestAccount("session-short", "5.00")

	_, err := suite.manager.DeductCredits(ctx, account.ID,
		decimal.RequireFromString("10.00"), "print", nil)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInsufficientBalance))

	// 余额未变，也没有留下流水
	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(decimal.RequireFromString("5.00")))

	pagination := repository.NewPagination(1, 10)
	records, err := suite.txs.FindByAccountID(ctx, account.ID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, 0)

	// 重试同样失败，幂等
	_, err = suite.manager.DeductCredits(ctx, account.ID,
		decimal.RequireFromString("10.00"), "print", nil)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInsufficientBalance))
}

// TestAddCredits_Concurrent 测试并发投币的余额收敛
func (suite *CreditManagerTestSuite) TestAddCredits_Concurrent() {
	ctx := context.Background()
	account := suite.createTestAccount("session-concurrent", "0.00")

	const workers = 20
	amount := decimal.RequireFromString("1.00")

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.manager.AddCredits(ctx, account.ID, amount, "coin insert", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(suite.T(), err)
	}

	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.Equal(decimal.NewFromInt(workers)),
		"expected %d, got %s", workers, balance.String())

	// 每次入账恰好一条流水
	pagination := repository.NewPagination(1, 100)
	records, err := suite.txs.FindByAccountID(ctx, account.ID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, workers)
}

// TestSettleSession 测试付款结算：扣费并清零剩余余额
func (suite *CreditManagerTestSuite) TestSettleSession() {
	ctx := context.Background()
	account := suite.createTestAccount("session-settle", "20.00")

	jobID := uint(3)
	record, err := suite.manager.SettleSession(ctx, account.ID,
		decimal.RequireFromString("12.00"), "print job PJ-3", &jobID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), record.BalanceAfter.Equal(decimal.RequireFromString("8.00")))

	// 剩余的8.00已清零
	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.IsZero())

	// 只有扣款一条流水，清零不记账
	pagination := repository.NewPagination(1, 10)
	records, err := suite.txs.FindByAccountID(ctx, account.ID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), records, 1)
	assert.Equal(suite.T(), models.TransactionTypePrintDeduction, records[0].Type)
}

// TestSettleSession_ConcurrentCoin 测试结算期间投币不互相卡死
// 结算和投币都是先取账户锁再开事务；顺序一旦不一致，单连接池上
// 持有连接的一方会和持有锁的一方互相等待。
func (suite *CreditManagerTestSuite) TestSettleSession_ConcurrentCoin() {
	ctx := context.Background()
	account := suite.createTestAccount("session-race", "10.00")

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := suite.manager.SettleSession(ctx, account.ID,
			decimal.RequireFromString("10.00"), "print job PJ-9", nil)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := suite.manager.AddCredits(ctx, account.ID,
			decimal.RequireFromString("1.00"), "coin insert", nil)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(suite.T(), err)
	}

	// 投币先到则被结算清零，后到则留在余额里；两种都合法
	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.IsZero() || balance.Equal(decimal.RequireFromString("1.00")),
		"unexpected balance %s", balance.String())
}

// TestResetSession 测试会话清零
func (suite *CreditManagerTestSuite) TestResetSession() {
	ctx := context.Background()
	account := suite.createTestAccount("session-reset", "7.00")

	err := suite.manager.ResetSession(ctx, account.ID)
	assert.NoError(suite.T(), err)

	balance, err := suite.manager.GetBalance(ctx, account.ID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), balance.IsZero())

	// 清零幂等
	err = suite.manager.ResetSession(ctx, account.ID)
	assert.NoError(suite.T(), err)
}

func TestCreditManagerTestSuite(t *testing.T) {
	suite.Run(t, new(CreditManagerTestSuite))
}
