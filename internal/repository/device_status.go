package repository

import (
	"context"
	"errors"

	"github.com/pisoprint/kiosk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceStatusRepository 设备状态仓储接口
type DeviceStatusRepository interface {
	BaseRepository
	Upsert(ctx context.Context, status *models.DeviceStatus) error
	FindByDeviceID(ctx context.Context, deviceID string) (*models.DeviceStatus, error)
	ListAll(ctx context.Context) ([]*models.DeviceStatus, error)
}

// deviceStatusRepo 设备状态仓储实现
type deviceStatusRepo struct {
	*BaseRepo
}

// NewDeviceStatusRepository 创建设备状态仓储
func NewDeviceStatusRepository(db *gorm.DB) DeviceStatusRepository {
	return &deviceStatusRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Upsert 按设备ID写入或更新状态
func (r *deviceStatusRepo) Upsert(ctx context.Context, status *models.DeviceStatus) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"device_name", "type", "status", "port",
				"last_status", "last_ping_at", "message_count", "updated_at",
			}),
		}).
		Create(status).Error
}

// FindByDeviceID 根据设备ID查找状态
func (r *deviceStatusRepo) FindByDeviceID(ctx context.Context, deviceID string) (*models.DeviceStatus, error) {
	var status models.DeviceStatus
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// ListAll 列出所有设备状态
func (r *deviceStatusRepo) ListAll(ctx context.Context) ([]*models.DeviceStatus, error) {
	var statuses []*models.DeviceStatus
	err := r.db.WithContext(ctx).Order("device_id ASC").Find(&statuses).Error
	return statuses, err
}

// WithTx 使用事务
func (r *deviceStatusRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &deviceStatusRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
