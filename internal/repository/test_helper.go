package repository

import (
	"github.com/pisoprint/kiosk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置内存数据库
// SQLite 的行锁对 SELECT ... FOR UPDATE 无效，单连接串行化后
// 并发测试的结果只由进程内账户锁保证。
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Account{},
		&models.CreditTransaction{},
		&models.PrintJob{},
		&models.DeviceStatus{},
		&models.SerialLog{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 关闭测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}
