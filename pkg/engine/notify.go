package engine

import (
	"sync"

	"go.uber.org/zap"
)

// Severity of a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
)

// Notification is one user-facing message emitted by the engine.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Notifier is the sink the engine reports action outcomes to. The rendering
// layer decides how to surface them (toasts in a browser, log lines in a
// headless run).
type Notifier interface {
	ShowSuccess(msg string)
	ShowError(msg string)
	ShowInfo(msg string)
	ShowWarn(msg string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Log *zap.SugaredLogger
}

func (n LogNotifier) ShowSuccess(msg string) { n.Log.Infow("notify", "severity", "success", "msg", msg) }
func (n LogNotifier) ShowError(msg string)   { n.Log.Warnw("notify", "severity", "error", "msg", msg) }
func (n LogNotifier) ShowInfo(msg string)    { n.Log.Infow("notify", "severity", "info", "msg", msg) }
func (n LogNotifier) ShowWarn(msg string)    { n.Log.Warnw("notify", "severity", "warn", "msg", msg) }

// StreamNotifier fans notifications out to subscribers (the WebSocket layer)
// and to a fallback notifier. Slow subscribers drop messages instead of
// blocking the engine.
type StreamNotifier struct {
	mu       sync.Mutex
	subs     []chan Notification
	Fallback Notifier
}

func NewStreamNotifier(fallback Notifier) *StreamNotifier {
	return &StreamNotifier{Fallback: fallback}
}

// Subscribe returns a channel receiving every notification from now on.
func (n *StreamNotifier) Subscribe() <-chan Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan Notification, 64)
	n.subs = append(n.subs, ch)
	return ch
}

func (n *StreamNotifier) publish(note Notification) {
	n.mu.Lock()
	subs := make([]chan Notification, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- note:
		default:
		}
	}
	if n.Fallback != nil {
		switch note.Severity {
		case SeveritySuccess:
			n.Fallback.ShowSuccess(note.Message)
		case SeverityError:
			n.Fallback.ShowError(note.Message)
		case SeverityInfo:
			n.Fallback.ShowInfo(note.Message)
		case SeverityWarn:
			n.Fallback.ShowWarn(note.Message)
		}
	}
}

func (n *StreamNotifier) ShowSuccess(msg string) { n.publish(Notification{SeveritySuccess, msg}) }
func (n *StreamNotifier) ShowError(msg string)   { n.publish(Notification{SeverityError, msg}) }
func (n *StreamNotifier) ShowInfo(msg string)    { n.publish(Notification{SeverityInfo, msg}) }
func (n *StreamNotifier) ShowWarn(msg string)    { n.publish(Notification{SeverityWarn, msg}) }

// MemoryNotifier records notifications for assertions in tests.
type MemoryNotifier struct {
	mu    sync.Mutex
	Notes []Notification
}

func (n *MemoryNotifier) add(sev Severity, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notes = append(n.Notes, Notification{Severity: sev, Message: msg})
}

func (n *MemoryNotifier) ShowSuccess(msg string) { n.add(SeveritySuccess, msg) }
func (n *MemoryNotifier) ShowError(msg string)   { n.add(SeverityError, msg) }
func (n *MemoryNotifier) ShowInfo(msg string)    { n.add(SeverityInfo, msg) }
func (n *MemoryNotifier) ShowWarn(msg string)    { n.add(SeverityWarn, msg) }

// BySeverity returns the recorded messages with the given severity.
func (n *MemoryNotifier) BySeverity(sev Severity) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, note := range n.Notes {
		if note.Severity == sev {
			out = append(out, note.Message)
		}
	}
	return out
}
