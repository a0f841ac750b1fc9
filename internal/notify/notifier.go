package notify

import (
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentReceivedEvent 收款事件
// 投币入账成功后发出，携带账户、流水、入账金额与硬件上报的面值。
type PaymentReceivedEvent struct {
	Account     *models.Account           `json:"account"`
	Transaction *models.CreditTransaction `json:"transaction"`
	Amount      decimal.Decimal           `json:"amount"`
	CoinValue   decimal.Decimal           `json:"coin_value"`
}

// JobCompletedEvent 打印完成事件
type JobCompletedEvent struct {
	Job *models.PrintJob `json:"job"`
}

// Notifier 通知接口
// 核心对外发出的两类信号，由外部的通知/日志协作方消费。
type Notifier interface {
	PaymentReceived(event PaymentReceivedEvent)
	JobCompleted(event JobCompletedEvent)
}

// LogNotifier 日志通知器
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// PaymentReceived 记录收款事件
func (n *LogNotifier) PaymentReceived(event PaymentReceivedEvent) {
	n.log.Info("payment_received",
		zap.Uint("account_id", event.Account.ID),
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("coin_value", event.CoinValue.StringFixed(2)),
		zap.String("ref_no", event.Transaction.RefNo),
	)
}

// JobCompleted 记录打印完成事件
func (n *LogNotifier) JobCompleted(event JobCompletedEvent) {
	n.log.Info("print_job_completed",
		zap.Uint("job_id", event.Job.ID),
		zap.String("job_no", event.Job.JobNo),
		zap.String("spooler_job_id", event.Job.SpoolerJobID),
	)
}

// CompositeNotifier 组合通知器，按顺序分发给多个下游
type CompositeNotifier struct {
	notifiers []Notifier
}

// NewCompositeNotifier 创建组合通知器
func NewCompositeNotifier(notifiers ...Notifier) *CompositeNotifier {
	return &CompositeNotifier{notifiers: notifiers}
}

// PaymentReceived 分发收款事件
func (n *CompositeNotifier) PaymentReceived(event PaymentReceivedEvent) {
	for _, notifier := range n.notifiers {
		notifier.PaymentReceived(event)
	}
}

// JobCompleted 分发打印完成事件
func (n *CompositeNotifier) JobCompleted(event JobCompletedEvent) {
	for _, notifier := range n.notifiers {
		notifier.JobCompleted(event)
	}
}

// NopNotifier 空通知器（用于测试）
type NopNotifier struct{}

func (NopNotifier) PaymentReceived(event PaymentReceivedEvent) {}
func (NopNotifier) JobCompleted(event JobCompletedEvent)       {}
