package repository

import (
	"context"
	"errors"

	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"gorm.io/gorm"
)

// PrintJobRepository 打印任务仓储接口
type PrintJobRepository interface {
	BaseRepository
	Create(ctx context.Context, job *models.PrintJob) error
	FindByID(ctx context.Context, id uint) (*models.PrintJob, error)
	FindByJobNo(ctx context.Context, jobNo string) (*models.PrintJob, error)
	FindByAccountID(ctx context.Context, accountID uint, pagination *Pagination) ([]*models.PrintJob, error)
	FindActive(ctx context.Context) ([]*models.PrintJob, error)
	Save(ctx context.Context, job *models.PrintJob) error
}

// printJobRepo 打印任务仓储实现
type printJobRepo struct {
	*BaseRepo
}

// NewPrintJobRepository 创建打印任务仓储
func NewPrintJobRepository(db *gorm.DB) PrintJobRepository {
	return &printJobRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建打印任务
func (r *printJobRepo) Create(ctx context.Context, job *models.PrintJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// FindByID 根据ID查找打印任务
func (r *printJobRepo) FindByID(ctx context.Context, id uint) (*models.PrintJob, error) {
	var job models.PrintJob
	err := r.db.WithContext(ctx).First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrPrintJobNotFound, "job id %d", id)
		}
		return nil, err
	}
	return &job, nil
}

// FindByJobNo 根据任务号查找
func (r *printJobRepo) FindByJobNo(ctx context.Context, jobNo string) (*models.PrintJob, error) {
	var job models.PrintJob
	err := r.db.WithContext(ctx).Where("job_no = ?", jobNo).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrPrintJobNotFound, "job no %s", jobNo)
		}
		return nil, err
	}
	return &job, nil
}

// FindByAccountID 查找账户的打印任务
func (r *printJobRepo) FindByAccountID(ctx context.Context, accountID uint, pagination *Pagination) ([]*models.PrintJob, error) {
	var jobs []*models.PrintJob
	query := r.db.WithContext(ctx).Model(&models.PrintJob{}).Where("account_id = ?", accountID)

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&jobs).Error

	return jobs, err
}

// FindActive 查找所有进行中的任务（用于对账轮询）
func (r *printJobRepo) FindActive(ctx context.Context) ([]*models.PrintJob, error) {
	var jobs []*models.PrintJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			models.PrintJobStatusSubmitting,
			models.PrintJobStatusPrinting,
		}).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

// Save 保存打印任务变更
func (r *printJobRepo) Save(ctx context.Context, job *models.PrintJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// WithTx 使用事务
func (r *printJobRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &printJobRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
