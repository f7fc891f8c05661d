// Package alert delivers operator notifications for conditions the
// pipeline cannot resolve on its own.
package alert

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Alert is one operator notification
type Alert struct {
	RecordID       string `json:"record_id"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	ActionRequired string `json:"action_required,omitempty"`
}

// Notifier delivers alerts
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log backed notifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	n.log.Warn("operator alert",
		zap.String("record", a.RecordID),
		zap.String("subject", a.Subject),
		zap.String("message", a.Message),
		zap.String("action_required", a.ActionRequired))
	return nil
}

// Recorder keeps alerts in memory for inspection
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

// NewRecorder creates an in-memory notifier
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

// Alerts returns a copy of everything recorded so far
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}
