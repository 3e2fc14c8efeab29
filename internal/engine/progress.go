package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Reporter receives progress updates from a running closure. Calls come
// from the goroutine running Run.
type Reporter interface {
	SetPass(pass, size int)
	SetSize(size int)
	AddLine(line string)
	SetTimeLeft(d time.Duration)
}

type nopReporter struct{}

func (nopReporter) SetPass(int, int)          {}
func (nopReporter) SetSize(int)               {}
func (nopReporter) AddLine(string)            {}
func (nopReporter) SetTimeLeft(time.Duration) {}

// LogReporter writes progress to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

// NewLogReporter reports through l, or slog.Default() when l is nil.
func NewLogReporter(l *slog.Logger) *LogReporter {
	if l == nil {
		l = slog.Default()
	}
	return &LogReporter{Logger: l}
}

func (r *LogReporter) SetPass(pass, size int) {
	r.Logger.Info("pass started", "pass", pass, "size", size)
}

func (r *LogReporter) SetSize(size int) {
	r.Logger.Debug("closure size", "size", size)
}

func (r *LogReporter) AddLine(line string) {
	r.Logger.Info(line)
}

func (r *LogReporter) SetTimeLeft(d time.Duration) {
	r.Logger.Info("pass estimate", "time_left", FormatDuration(d))
}

// FormatDuration renders d as H:MM:SS, rounding to the nearest second.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// passEstimator extrapolates the time left in a pass from the fraction of
// tuples already applied.
type passEstimator struct {
	total    int64
	start    time.Time
	last     time.Time
	interval time.Duration
}

func newPassEstimator(total int64, now time.Time) *passEstimator {
	return &passEstimator{total: total, start: now, last: now, interval: time.Second}
}

// due reports whether an update should be emitted at now.
func (p *passEstimator) due(now time.Time) bool {
	if p.total <= 0 || now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	return true
}

// timeLeft estimates the remaining time after done applications.
func (p *passEstimator) timeLeft(done int64, now time.Time) time.Duration {
	if done <= 0 || p.total <= 0 {
		return 0
	}
	if done >= p.total {
		return 0
	}
	elapsed := now.Sub(p.start)
	return time.Duration(float64(elapsed) * float64(p.total-done) / float64(done))
}
