package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/pisoprint/kiosk/internal/api"
	"github.com/pisoprint/kiosk/internal/config"
	"github.com/pisoprint/kiosk/internal/credit"
	"github.com/pisoprint/kiosk/internal/database"
	"github.com/pisoprint/kiosk/internal/hardware"
	"github.com/pisoprint/kiosk/internal/logger"
	"github.com/pisoprint/kiosk/internal/notify"
	"github.com/pisoprint/kiosk/internal/printer"
	"github.com/pisoprint/kiosk/internal/repository"
	"github.com/pisoprint/kiosk/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 终端服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	kiosk      *service.KioskService
	comm       *hardware.CommService
	printerMgr *printer.Manager
	httpServer *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("piso-print kiosk %s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	setupSystem(&cfg.System)

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 初始化组件并启动各个服务
func (s *Server) Start() error {
	s.logger.Info("正在启动自助打印终端...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode))

	// 数据库
	if err := database.Init(&s.cfg.Database); err != nil {
		return err
	}
	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return err
		}
	}
	db := database.GetDB()

	// 通知链：日志 + WebSocket推送
	hub := api.NewHub(s.cfg.WebSocket.WriteTimeout, logger.GetModuleLogger("ws"))
	notifier := notify.NewCompositeNotifier(
		notify.NewLogNotifier(logger.GetModuleLogger("notify")),
		hub,
	)

	// 账本
	creditMgr := credit.NewManager(db, notifier, logger.GetModuleLogger("credit"))

	// 打印
	spooler := printer.NewCUPSSpooler(&s.cfg.Printing)
	directory := printer.NewCUPSDirectory(spooler)
	pricing := printer.NewPricing(&s.cfg.Pricing)
	s.printerMgr = printer.NewManager(
		repository.NewPrintJobRepository(db),
		spooler,
		directory,
		pricing,
		nil,
		notifier,
		&s.cfg.Printing,
		logger.GetModuleLogger("printer"),
	)

	// 终端业务服务，同时充当付款守卫与投币入口
	s.kiosk = service.NewKioskService(db, creditMgr, s.printerMgr, logger.GetModuleLogger("kiosk"))
	s.printerMgr.SetPaymentVerifier(s.kiosk)

	// 投币器串口链路
	if s.cfg.Serial.Enabled {
		if err := s.startHardware(db); err != nil {
			return err
		}
	} else {
		s.logger.Info("串口已禁用，投币器不可用")
	}

	// 打印队列对账
	s.startReconciler()

	// HTTP服务
	router := api.NewRouter(s.cfg, db, s.kiosk, s.comm, hub, logger.GetModuleLogger("api"))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	// 配置热更新只刷新可动态生效的项（计价等），链路类配置需重启
	config.Watch(func(newCfg *config.Config) {
		s.cfg = newCfg
		s.logger.Info("配置已重新加载")
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.httpServer.Addr),
		zap.Bool("serial", s.cfg.Serial.Enabled))
	return nil
}

// startHardware 建立串口链路并启动轮询
func (s *Server) startHardware(db *gorm.DB) error {
	var conn hardware.ConnectionManager
	if s.cfg.Serial.MockMode {
		s.logger.Warn("串口运行在模拟模式")
		conn = hardware.NewMockConnection(s.cfg.Serial.DeviceID)
	} else {
		conn = hardware.NewSerialConnection(&s.cfg.Serial)
	}

	denominations := make([]decimal.Decimal, 0, len(s.cfg.Serial.Denominations))
	for _, raw := range s.cfg.Serial.Denominations {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			s.logger.Warn("忽略无法解析的面值配置", zap.String("value", raw))
			continue
		}
		denominations = append(denominations, value)
	}

	s.comm = hardware.NewCommService(
		conn,
		hardware.NewParser(denominations),
		hardware.NewHealthMonitor(s.cfg.Serial.HeartbeatTimeout),
		s.kiosk,
		repository.NewSerialLogRepository(db),
		repository.NewDeviceStatusRepository(db),
		logger.GetModuleLogger("hardware"),
	)

	if err := s.comm.Start(); err != nil {
		// 串口打开失败不阻止启动，打印功能仍可用
		s.logger.Error("串口连接失败，投币暂不可用", zap.Error(err))
	}

	pollInterval := s.cfg.Serial.PollInterval
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		poll := time.NewTicker(pollInterval)
		sync := time.NewTicker(10 * time.Second)
		defer poll.Stop()
		defer sync.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-poll.C:
				s.comm.Poll(s.ctx)
			case <-sync.C:
				if err := s.comm.SyncDeviceStatus(s.ctx); err != nil {
					s.logger.Warn("设备状态刷新失败", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// WaitForShutdown 等待退出信号
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	s.logger.Info("收到退出信号，开始优雅关闭...")
}

// Shutdown 优雅关闭
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP服务关闭失败", zap.Error(err))
		}
	}

	if s.comm != nil {
		if err := s.comm.Stop(); err != nil {
			s.logger.Error("串口断开失败", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("后台任务未在超时内退出")
	}

	return database.Close()
}

// startReconciler 启动打印队列对账定时器
func (s *Server) startReconciler() {
	interval := s.cfg.Printing.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.printerMgr.ReconcileActive(s.ctx); err != nil {
					s.logger.Error("打印对账失败", zap.Error(err))
				}
			}
		}
	}()
}

// setupSystem 设置系统级参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
	// 货币计算统一保留两位小数
	decimal.DivisionPrecision = 2
}
