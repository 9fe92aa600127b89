package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindLowBalance indicates a wallet dropped below its low balance threshold.
	KindLowBalance = "low_balance"
	// KindAutoTopupRequested asks the payment collaborator to start a topup.
	KindAutoTopupRequested = "auto_topup_requested"
)

// Message describes a notification payload. Amount is only set for
// auto-topup requests.
type Message struct {
	Kind     string
	TenantID string
	WalletID string
	Amount   string
	Body     string
}

// Notifier delivers notifications to downstream systems. Delivery is
// fire-and-forget; wallet operations never block on it.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"tenant_id", message.TenantID,
		"wallet_id", message.WalletID,
		"amount", message.Amount,
		"body", message.Body)
	return nil
}

// Recorder captures sent messages in memory for tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send records the message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
