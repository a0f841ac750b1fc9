package repository

import (
	"context"
	"testing"

	apperrors "github.com/pisoprint/kiosk/internal/errors"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// PrintJobRepositoryTestSuite 打印任务仓储测试套件
type PrintJobRepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	jobRepo  PrintJobRepository
	accounts AccountRepository
}

func (suite *PrintJobRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.jobRepo = NewPrintJobRepository(suite.db)
	suite.accounts = NewAccountRepository(suite.db)
}

func (suite *PrintJobRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// createTestJob 创建测试任务
func (suite *PrintJobRepositoryTestSuite) createTestJob(jobNo, status string) *models.PrintJob {
	job := &models.PrintJob{
		AccountID: 1,
		JobNo:     jobNo,
		FileName:  "report.pdf",
		FilePath:  "/tmp/report.pdf",
		Pages:     5,
		Copies:    1,
		ColorMode: models.ColorModeBW,
		PaperSize: "A4",
		Cost:      decimal.RequireFromString("10.00"),
		Status:    status,
	}
	err := suite.jobRepo.Create(context.Background(), job)
	suite.Require().NoError(err)
	return job
}

// TestPrintJobRepository_CreateAndFind 测试创建与查找
func (suite *PrintJobRepositoryTestSuite) TestPrintJobRepository_CreateAndFind() {
	ctx := context.Background()
	job := suite.createTestJob("PJ-001", models.PrintJobStatusSubmitting)

	found, err := suite.jobRepo.FindByID(ctx, job.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "PJ-001", found.JobNo)
	assert.Equal(suite.T(), models.PrintJobStatusSubmitting, found.Status)

	found, err = suite.jobRepo.FindByJobNo(ctx, "PJ-001")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), job.ID, found.ID)

	_, err = suite.jobRepo.FindByID(ctx, 99999)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrPrintJobNotFound))
}

// TestPrintJobRepository_FindActive 测试进行中任务查询
func (suite *PrintJobRepositoryTestSuite) TestPrintJobRepository_FindActive() {
	ctx := context.Background()

	suite.createTestJob("PJ-active-1", models.PrintJobStatusSubmitting)
	suite.createTestJob("PJ-active-2", models.PrintJobStatusPrinting)
	suite.createTestJob("PJ-done", models.PrintJobStatusCompleted)
	suite.createTestJob("PJ-failed", models.PrintJobStatusFailed)
	suite.createTestJob("PJ-cancelled", models.PrintJobStatusCancelled)

	active, err := suite.jobRepo.FindActive(ctx)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), active, 2)
	for _, job := range active {
		assert.False(suite.T(), job.IsTerminal())
	}
}

// TestPrintJobRepository_Save 测试状态变更保存
func (suite *PrintJobRepositoryTestSuite) TestPrintJobRepository_Save() {
	ctx := context.Background()
	job := suite.createTestJob("PJ-save", models.PrintJobStatusSubmitting)

	job.Status = models.PrintJobStatusPrinting
	job.SpoolerJobID = "EPSON-L3150-7"
	err := suite.jobRepo.Save(ctx, job)
	assert.NoError(suite.T(), err)

	found, err := suite.jobRepo.FindByID(ctx, job.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PrintJobStatusPrinting, found.Status)
	assert.Equal(suite.T(), "EPSON-L3150-7", found.SpoolerJobID)
}

func TestPrintJobRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(PrintJobRepositoryTestSuite))
}
