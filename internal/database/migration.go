package database

import (
	"fmt"

	"github.com/pisoprint/kiosk/internal/logger"
	"github.com/pisoprint/kiosk/internal/models"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	logger.Info("开始数据库迁移...")

	err := DB.AutoMigrate(
		// 账本系统
		&models.Account{},
		&models.CreditTransaction{},

		// 打印系统
		&models.PrintJob{},

		// 硬件系统
		&models.DeviceStatus{},
		&models.SerialLog{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	logger.Info("数据库迁移完成")
	return nil
}
