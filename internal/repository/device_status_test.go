package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pisoprint/kiosk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// DeviceStatusRepositoryTestSuite 设备状态仓储测试套件
type DeviceStatusRepositoryTestSuite struct {
	suite.Suite
	db         *gorm.DB
	deviceRepo DeviceStatusRepository
	logRepo    SerialLogRepository
}

func (suite *DeviceStatusRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.deviceRepo = NewDeviceStatusRepository(suite.db)
	suite.logRepo = NewSerialLogRepository(suite.db)
}

func (suite *DeviceStatusRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// TestDeviceStatusRepository_Upsert 测试设备状态写入与更新
func (suite *DeviceStatusRepositoryTestSuite) TestDeviceStatusRepository_Upsert() {
	ctx := context.Background()

	err := suite.deviceRepo.Upsert(ctx, &models.DeviceStatus{
		DeviceID: "coin-acceptor-01",
		Type:     "coin_acceptor",
		Status:   "offline",
	})
	assert.NoError(suite.T(), err)

	// 同一设备再次写入应更新而不是新增
	now := time.Now()
	err = suite.deviceRepo.Upsert(ctx, &models.DeviceStatus{
		DeviceID:     "coin-acceptor-01",
		Type:         "coin_acceptor",
		Status:       "online",
		LastStatus:   "READY",
		LastPingAt:   &now,
		MessageCount: 12,
	})
	assert.NoError(suite.T(), err)

	found, err := suite.deviceRepo.FindByDeviceID(ctx, "coin-acceptor-01")
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), found)
	assert.Equal(suite.T(), "online", found.Status)
	assert.Equal(suite.T(), "READY", found.LastStatus)
	assert.Equal(suite.T(), uint64(12), found.MessageCount)

	all, err := suite.deviceRepo.ListAll(ctx)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 1)
}

// TestDeviceStatusRepository_FindMissing 测试查找不存在的设备
func (suite *DeviceStatusRepositoryTestSuite) TestDeviceStatusRepository_FindMissing() {
	found, err := suite.deviceRepo.FindByDeviceID(context.Background(), "no-such-device")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), found)
}

// TestSerialLogRepository_CreateAndQuery 测试串口日志写入与查询
func (suite *DeviceStatusRepositoryTestSuite) TestSerialLogRepository_CreateAndQuery() {
	ctx := context.Background()

	frames := []struct {
		direction string
		frame     string
		frameType string
	}{
		{models.SerialLogDirectionReceive, "COIN:5.00", "COIN"},
		{models.SerialLogDirectionSend, "ACK:COIN:5.00", "ACK"},
		{models.SerialLogDirectionReceive, "HEARTBEAT", "HEARTBEAT"},
	}
	for _, f := range frames {
		err := suite.logRepo.Create(ctx, &models.SerialLog{
			DeviceID:  "coin-acceptor-01",
			Direction: f.direction,
			Frame:     f.frame,
			FrameType: f.frameType,
		})
		assert.NoError(suite.T(), err)
	}

	recent, err := suite.logRepo.FindRecent(ctx, 10)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), recent, 3)
	// BeforeCreate 钩子补全时间戳
	for _, entry := range recent {
		assert.NotZero(suite.T(), entry.Timestamp)
	}

	pagination := NewPagination(1, 2)
	logs, err := suite.logRepo.FindByDeviceID(ctx, "coin-acceptor-01", pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), logs, 2)
	assert.Equal(suite.T(), int64(3), pagination.Total)
}

// TestSerialLogRepository_DeleteBefore 测试日志清理
func (suite *DeviceStatusRepositoryTestSuite) TestSerialLogRepository_DeleteBefore() {
	ctx := context.Background()

	err := suite.logRepo.Create(ctx, &models.SerialLog{
		DeviceID:  "coin-acceptor-01",
		Direction: models.SerialLogDirectionReceive,
		Frame:     "HEARTBEAT",
		FrameType: "HEARTBEAT",
	})
	assert.NoError(suite.T(), err)

	deleted, err := suite.logRepo.DeleteBefore(ctx, time.Now().Add(time.Minute))
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), deleted)

	recent, err := suite.logRepo.FindRecent(ctx, 10)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), recent, 0)
}

func TestDeviceStatusRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(DeviceStatusRepositoryTestSuite))
}
