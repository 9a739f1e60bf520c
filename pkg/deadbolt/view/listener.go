package view

import (
	"log/slog"
	"time"
)

// TemplateFailureListener is told when a view check gives up after timeout.
type TemplateFailureListener interface {
	Failure(message string, timeout time.Duration)
}

type ListenerFunc func(message string, timeout time.Duration)

func (f ListenerFunc) Failure(message string, timeout time.Duration) { f(message, timeout) }

// LogListener is the default listener. It records failures at WARN.
type LogListener struct {
	Logger *slog.Logger
}

func (l LogListener) Failure(message string, timeout time.Duration) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Warn("template failure", "msg", message, "timeout", timeout)
}
