// Package notification delivers operator alerts (critique reports, applied
// parameter changes, feed outages) to external channels.
package notification

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	BotID   string     `json:"bot_id,omitempty"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log. Used when no channel is configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	fields := []zap.Field{zap.String("title", alert.Title), zap.String("bot", alert.BotID)}
	switch alert.Level {
	case AlertCritical:
		n.log.Error(alert.Message, fields...)
	case AlertWarning:
		n.log.Warn(alert.Message, fields...)
	default:
		n.log.Info(alert.Message, fields...)
	}
	return nil
}

// Multi sends every alert to all of its notifiers. Failures do not stop
// delivery to the rest; they are returned together.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var failed []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			failed = append(failed, err)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return failed[0]
	}
	msg := failed[0].Error()
	for _, err := range failed[1:] {
		msg += "; " + err.Error()
	}
	return errors.New(msg)
}
