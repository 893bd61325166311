package hn

import (
	"fmt"
	"time"
)

// DebugLog collects timestamped messages for debug responses. The first line
// carries the wall clock, later lines the time since the previous one. A nil
// DebugLog discards everything.
type DebugLog struct {
	now   func() time.Time
	last  time.Time
	lines []string
}

func NewDebugLog(now func() time.Time) *DebugLog {
	if now == nil {
		now = time.Now
	}
	return &DebugLog{now: now}
}

func (l *DebugLog) Add(msg string) {
	if l == nil {
		return
	}
	t := l.now()
	if l.last.IsZero() {
		l.lines = append(l.lines, fmt.Sprintf("[%s] %s", t.Format(time.RFC1123), msg))
	} else {
		ms := float64(t.Sub(l.last).Microseconds()) / 1000
		l.lines = append(l.lines, fmt.Sprintf("[+%.3fms] %s", ms, msg))
	}
	l.last = t
}

func (l *DebugLog) Lines() []string {
	if l == nil {
		return nil
	}
	return append([]string{}, l.lines...)
}
