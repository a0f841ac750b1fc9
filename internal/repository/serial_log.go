package repository

import (
	"context"
	"time"

	"github.com/pisoprint/kiosk/internal/models"
	"gorm.io/gorm"
)

// SerialLogRepository 串口日志仓储接口
type SerialLogRepository interface {
	BaseRepository
	Create(ctx context.Context, log *models.SerialLog) error
	FindRecent(ctx context.Context, limit int) ([]*models.SerialLog, error)
	FindByDeviceID(ctx context.Context, deviceID string, pagination *Pagination) ([]*models.SerialLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// serialLogRepo 串口日志仓储实现
type serialLogRepo struct {
	*BaseRepo
}

// NewSerialLogRepository 创建串口日志仓储
func NewSerialLogRepository(db *gorm.DB) SerialLogRepository {
	return &serialLogRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 写入一条串口日志
func (r *serialLogRepo) Create(ctx context.Context, log *models.SerialLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindRecent 查找最近的串口日志
func (r *serialLogRepo) FindRecent(ctx context.Context, limit int) ([]*models.SerialLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []*models.SerialLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// FindByDeviceID 按设备查找串口日志
func (r *serialLogRepo) FindByDeviceID(ctx context.Context, deviceID string, pagination *Pagination) ([]*models.SerialLog, error) {
	var logs []*models.SerialLog
	query := r.db.WithContext(ctx).Model(&models.SerialLog{}).Where("device_id = ?", deviceID)

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// DeleteBefore 清理指定时间之前的日志
func (r *serialLogRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", before).
		Delete(&models.SerialLog{})
	return result.RowsAffected, result.Error
}

// WithTx 使用事务
func (r *serialLogRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &serialLogRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
