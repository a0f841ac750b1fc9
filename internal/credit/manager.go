package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/pisoprint/kiosk/internal/database"
	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/pisoprint/kiosk/internal/notify"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddOptions 入账附加信息
type AddOptions struct {
	PrintJobID *uint
	DeviceID   string
	CoinValue  *decimal.Decimal // 硬件上报的面值，缺省取入账金额
	CoinCount  int
}

// Manager 信用账本管理器
// 负责余额的串行化读改写：同一账户的加款/扣款互斥，每次变更写入一条
// 带前后快照的流水，余额永不为负。
type Manager struct {
	db       *gorm.DB
	accounts repository.AccountRepository
	txs      repository.TransactionRepository
	locks    *database.KeyedMutex
	notifier notify.Notifier
	log      *zap.Logger
}

// NewManager 创建账本管理器
func NewManager(db *gorm.DB, notifier notify.Notifier, log *zap.Logger) *Manager {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Manager{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		txs:      repository.NewTransactionRepository(db),
		locks:    database.NewKeyedMutex(),
		notifier: notifier,
		log:      log,
	}
}

// AddCredits 投币入账
// 对账户行加排他锁，读取余额、加款、写入流水，在同一事务内完成。
// 成功后发出收款通知。
func (m *Manager) AddCredits(ctx context.Context, accountID uint, amount decimal.Decimal, description string, opts *AddOptions) (*models.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Newf(apperrors.ErrInvalidAmount, "amount %s", amount.String())
	}
	if opts == nil {
		opts = &AddOptions{}
	}

	m.locks.Lock(accountID)
	defer m.locks.Unlock(accountID)

	var (
		account *models.Account
		record  *models.CreditTransaction
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := repository.NewAccountRepository(tx)
		txs := repository.NewTransactionRepository(tx)

		var err error
		account, err = accounts.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		before := account.Balance
		after := before.Add(amount)

		record = &models.CreditTransaction{
			AccountID:     accountID,
			RefNo:         uuid.NewString(),
			Type:          models.TransactionTypeCoinInsert,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			PrintJobID:    opts.PrintJobID,
			DeviceID:      opts.DeviceID,
			CoinValue:     opts.CoinValue,
			CoinCount:     opts.CoinCount,
			Description:   description,
			Verified:      true,
		}
		if err := txs.Create(ctx, record); err != nil {
			return err
		}

		if err := accounts.UpdateBalance(ctx, accountID, after); err != nil {
			return err
		}

		account.Balance = after
		return nil
	})
	if err != nil {
		m.log.Error("投币入账失败",
			zap.Uint("account_id", accountID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		return nil, err
	}

	coinValue := amount
	if opts.CoinValue != nil {
		coinValue = *opts.CoinValue
	}
	m.notifier.PaymentReceived(notify.PaymentReceivedEvent{
		Account:     account,
		Transaction: record,
		Amount:      amount,
		CoinValue:   coinValue,
	})

	m.log.Info("投币入账成功",
		zap.Uint("account_id", accountID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", account.Balance.StringFixed(2)))

	return record, nil
}

// DeductCredits 打印扣款
// 余额不足时不做任何变更，返回余额不足错误。
func (m *Manager) DeductCredits(ctx context.Context, accountID uint, amount decimal.Decimal, description string, printJobID *uint) (*models.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Newf(apperrors.ErrInvalidAmount, "amount %s", amount.String())
	}

	m.locks.Lock(accountID)
	defer m.locks.Unlock(accountID)

	var record *models.CreditTransaction
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = m.deductTx(ctx, tx, accountID, amount, description, printJobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// deductTx 扣款的读改写，调用前必须已持有账户锁
func (m *Manager) deductTx(ctx context.Context, tx *gorm.DB, accountID uint, amount decimal.Decimal, description string, printJobID *uint) (*models.CreditTransaction, error) {
	accounts := repository.NewAccountRepository(tx)
	txs := repository.NewTransactionRepository(tx)

	account, err := accounts.LockForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	before := account.Balance
	if before.LessThan(amount) {
		return nil, apperrors.NewInsufficientBalance(amount, before)
	}
	after := before.Sub(amount)

	record := &models.CreditTransaction{
		AccountID:     accountID,
		RefNo:         uuid.NewString(),
		Type:          models.TransactionTypePrintDeduction,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		PrintJobID:    printJobID,
		Description:   description,
		Verified:      true,
	}
	if err := txs.Create(ctx, record); err != nil {
		return nil, err
	}

	if err := accounts.UpdateBalance(ctx, accountID, after); err != nil {
		return nil, err
	}

	m.log.Info("打印扣款成功",
		zap.Uint("account_id", accountID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", after.StringFixed(2)))

	return record, nil
}

// SettleSession 付款结算：扣除任务费用并清零剩余余额
// 单任务付款模型下任务提交成功即会话终结，两步在同一把账户锁、
// 同一个事务内完成。所有余额入口统一先取账户锁再开事务，
// 否则单连接池上结算和投币会互相等死。
func (m *Manager) SettleSession(ctx context.Context, accountID uint, amount decimal.Decimal, description string, printJobID *uint) (*models.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Newf(apperrors.ErrInvalidAmount, "amount %s", amount.String())
	}

	m.locks.Lock(accountID)
	defer m.locks.Unlock(accountID)

	var record *models.CreditTransaction
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = m.deductTx(ctx, tx, accountID, amount, description, printJobID)
		if err != nil {
			return err
		}
		return m.resetSessionTx(ctx, tx, accountID)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// HasSufficientBalance 检查余额是否足够
func (m *Manager) HasSufficientBalance(ctx context.Context, accountID uint, required decimal.Decimal) (bool, error) {
	balance, err := m.GetBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(required), nil
}

// GetBalance 查询余额
func (m *Manager) GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ResetSession 会话结算清零
// 单任务付款模型：任务付清并提交后（或会话取消时）余额归零，
// 不跨任务结转。清零属于会话生命周期操作，不产生账本流水。
func (m *Manager) ResetSession(ctx context.Context, accountID uint) error {
	m.locks.Lock(accountID)
	defer m.locks.Unlock(accountID)

	return m.resetSessionTx(ctx, m.db, accountID)
}

func (m *Manager) resetSessionTx(ctx context.Context, db *gorm.DB, accountID uint) error {
	accounts := repository.NewAccountRepository(db)

	account, err := accounts.LockForUpdate(ctx, accountID)
	if err != nil {
		return err
	}

	if account.Balance.IsZero() {
		return nil
	}

	if err := accounts.UpdateBalance(ctx, accountID, decimal.Zero); err != nil {
		return err
	}

	m.log.Info("会话余额清零",
		zap.Uint("account_id", accountID),
		zap.String("forfeited", account.Balance.StringFixed(2)))

	return nil
}
