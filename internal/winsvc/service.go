// Package winsvc runs the binaries as Windows services.
package winsvc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Spec describes a service to install.
type Spec struct {
	Name        string
	DisplayName string
	Description string

	// Args are passed to the executable when the SCM starts it.
	Args []string

	// RestartDelays are the SCM recovery actions, one per consecutive
	// failure. Nil uses 10s then 30s.
	RestartDelays []time.Duration
}

func (s Spec) restartDelays() []time.Duration {
	if s.RestartDelays == nil {
		return []time.Duration{10 * time.Second, 30 * time.Second}
	}
	return s.RestartDelays
}

const stopTimeout = 30 * time.Second

// task is the run function of a service in flight.
type task struct {
	name   string
	cancel context.CancelFunc
	done   chan error
}

func startTask(name string, run func(ctx context.Context) error) *task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{name: name, cancel: cancel, done: make(chan error, 1)}
	go func() {
		t.done <- run(ctx)
	}()
	return t
}

// stop cancels the run function and waits up to timeout for it to return.
// It reports the exit code for the SCM.
func (t *task) stop(timeout time.Duration) uint32 {
	t.cancel()
	select {
	case err := <-t.done:
		return t.exitCode(err)
	case <-time.After(timeout):
		zap.L().Warn("timed out waiting for graceful shutdown", zap.String("service", t.name))
		return 0
	}
}

func (t *task) exitCode(err error) uint32 {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	zap.L().Error("service stopped with error", zap.String("service", t.name), zap.Error(err))
	return 1
}

// eventWriter is the part of *eventlog.Log the core writes to.
type eventWriter interface {
	Info(eid uint32, msg string) error
	Warning(eid uint32, msg string) error
	Error(eid uint32, msg string) error
}

const (
	eventInfo    = 1
	eventWarning = 2
	eventError   = 3
)

// eventCore is a zap core that writes each entry to the event log with the
// severity of its level.
type eventCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	out eventWriter
}

func newEventCore(enc zapcore.Encoder, level zapcore.LevelEnabler, out eventWriter) zapcore.Core {
	return &eventCore{LevelEnabler: level, enc: enc, out: out}
}

func (c *eventCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &eventCore{LevelEnabler: c.LevelEnabler, enc: enc, out: c.out}
}

func (c *eventCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *eventCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := buf.String()
	buf.Free()

	switch {
	case ent.Level >= zapcore.ErrorLevel:
		return c.out.Error(eventError, msg)
	case ent.Level == zapcore.WarnLevel:
		return c.out.Warning(eventWarning, msg)
	default:
		return c.out.Info(eventInfo, msg)
	}
}

func (c *eventCore) Sync() error { return nil }
