package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRepository 账本流水仓储接口
type TransactionRepository interface {
	BaseRepository
	Create(ctx context.Context, transaction *models.CreditTransaction) error
	FindByID(ctx context.Context, id uint) (*models.CreditTransaction, error)
	FindByRefNo(ctx context.Context, refNo string) (*models.CreditTransaction, error)
	FindByAccountID(ctx context.Context, accountID uint, pagination *Pagination) ([]*models.CreditTransaction, error)
	FindByPrintJobID(ctx context.Context, jobID uint) ([]*models.CreditTransaction, error)
	GetDailyStatistics(ctx context.Context, date time.Time) (*RevenueStats, error)
}

// RevenueStats 营收统计
type RevenueStats struct {
	CoinsIn    string `json:"coins_in"`    // 投币总额
	Deductions string `json:"deductions"`  // 打印扣款总额
	CoinCount  int    `json:"coin_count"`  // 投币笔数
	PrintCount int    `json:"print_count"` // 扣款笔数
}

// transactionRepo 账本流水仓储实现
type transactionRepo struct {
	*BaseRepo
}

// NewTransactionRepository 创建账本流水仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建流水记录
func (r *transactionRepo) Create(ctx context.Context, transaction *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

// FindByID 根据ID查找流水
func (r *transactionRepo) FindByID(ctx context.Context, id uint) (*models.CreditTransaction, error) {
	var transaction models.CreditTransaction
	err := r.db.WithContext(ctx).First(&transaction, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "transaction id %d", id)
		}
		return nil, err
	}
	return &transaction, nil
}

// FindByRefNo 根据流水号查找
func (r *transactionRepo) FindByRefNo(ctx context.Context, refNo string) (*models.CreditTransaction, error) {
	var transaction models.CreditTransaction
	err := r.db.WithContext(ctx).Where("ref_no = ?", refNo).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "ref no %s", refNo)
		}
		return nil, err
	}
	return &transaction, nil
}

// FindByAccountID 查找账户的流水记录
func (r *transactionRepo) FindByAccountID(ctx context.Context, accountID uint, pagination *Pagination) ([]*models.CreditTransaction, error) {
	var transactions []*models.CreditTransaction
	query := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("account_id = ?", accountID)

	// 获取总数
	var total int64
	query.Count(&total)
	pagination.Total = total

	// 分页查询
	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&transactions).Error

	return transactions, err
}

// FindByPrintJobID 查找打印任务关联的流水
func (r *transactionRepo) FindByPrintJobID(ctx context.Context, jobID uint) ([]*models.CreditTransaction, error) {
	var transactions []*models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("print_job_id = ?", jobID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

// GetDailyStatistics 获取日营收统计
func (r *transactionRepo) GetDailyStatistics(ctx context.Context, date time.Time) (*RevenueStats, error) {
	stats := &RevenueStats{}

	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	// 投币总额
	var coinsIn float64
	r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("type = ? AND created_at BETWEEN ? AND ?",
			models.TransactionTypeCoinInsert, startOfDay, endOfDay).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&coinsIn)

	// 扣款总额
	var deductions float64
	r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("type = ? AND created_at BETWEEN ? AND ?",
			models.TransactionTypePrintDeduction, startOfDay, endOfDay).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&deductions)

	// 笔数统计
	var coinCount int64
	r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("type = ? AND created_at BETWEEN ? AND ?",
			models.TransactionTypeCoinInsert, startOfDay, endOfDay).
		Count(&coinCount)

	var printCount int64
	r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("type = ? AND created_at BETWEEN ? AND ?",
			models.TransactionTypePrintDeduction, startOfDay, endOfDay).
		Count(&printCount)

	stats.CoinsIn = decimal.NewFromFloat(coinsIn).StringFixed(2)
	stats.Deductions = decimal.NewFromFloat(deductions).StringFixed(2)
	stats.CoinCount = int(coinCount)
	stats.PrintCount = int(printCount)

	return stats, nil
}

// WithTx 使用事务
func (r *transactionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
