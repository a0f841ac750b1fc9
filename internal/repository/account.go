package repository

import (
	"context"
	"errors"

	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository 账户仓储接口
type AccountRepository interface {
	BaseRepository
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uint) (*models.Account, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Account, error)
	LockForUpdate(ctx context.Context, id uint) (*models.Account, error)
	UpdateBalance(ctx context.Context, id uint, balance decimal.Decimal) error
}

// accountRepo 账户仓储实现
type accountRepo struct {
	*BaseRepo
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建账户
func (r *accountRepo) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByID 根据ID查找账户
func (r *accountRepo) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrAccountNotFound, "account id %d", id)
		}
		return nil, err
	}
	return &account, nil
}

// FindBySessionID 根据会话ID查找账户
func (r *accountRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrAccountNotFound, "session %s", sessionID)
		}
		return nil, err
	}
	return &account, nil
}

// LockForUpdate 锁定账户行用于更新（悲观锁）
func (r *accountRepo) LockForUpdate(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrAccountNotFound, "account id %d", id)
		}
		return nil, err
	}
	return &account, nil
}

// UpdateBalance 更新余额
func (r *accountRepo) UpdateBalance(ctx context.Context, id uint, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("balance", balance)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrAccountNotFound, "account id %d", id)
	}

	return nil
}

// WithTx 使用事务
func (r *accountRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &accountRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
