// Package notice shows short-lived user-facing messages.
package notice

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// DefaultDuration is how long a notice stays relevant.
const DefaultDuration = 5 * time.Second

// Notice is a transient message.
type Notice struct {
	Level    Level
	Message  string
	Duration time.Duration
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
}

// Success sends a success notice.
func Success(n Notifier, msg string) { send(n, LevelSuccess, msg) }

// Error sends an error notice.
func Error(n Notifier, msg string) { send(n, LevelError, msg) }

// Warning sends a warning notice.
func Warning(n Notifier, msg string) { send(n, LevelWarning, msg) }

// Info sends an info notice.
func Info(n Notifier, msg string) { send(n, LevelInfo, msg) }

func send(n Notifier, level Level, msg string) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: level, Message: msg, Duration: DefaultDuration})
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// Terminal writes one styled line per notice.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal returns a Terminal notifier writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Notify(n Notice) {
	var style lipgloss.Style
	var mark string
	switch n.Level {
	case LevelSuccess:
		style, mark = successStyle, "✔"
	case LevelError:
		style, mark = errorStyle, "✖"
	case LevelWarning:
		style, mark = warningStyle, "!"
	default:
		style, mark = infoStyle, "i"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.w, style.Render(mark+" "+n.Message))
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many notices of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == level {
			n++
		}
	}
	return n
}

// Len returns the number of recorded notices.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}
