package logsvc

import (
	"github.com/rollbar/rollbar-go"
)

type RollbarOptions struct {
	Token       string
	Environment string
	CodeVersion string
	// PersonID identifies the student in reports, usually the auth subject.
	PersonID string
	Username string
}

// RollbarLogger reports to Rollbar and mirrors every entry to a local logger.
type RollbarLogger struct {
	local Logger
}

var _ Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(local Logger, opts RollbarOptions) *RollbarLogger {
	if local == nil {
		local = Discard()
	}
	rollbar.SetToken(opts.Token)
	rollbar.SetEnvironment(opts.Environment)
	if opts.CodeVersion != "" {
		rollbar.SetCodeVersion(opts.CodeVersion)
	}
	if opts.PersonID != "" {
		rollbar.SetPerson(opts.PersonID, opts.Username, "")
	} else {
		rollbar.ClearPerson()
	}
	rollbar.SetEnabled(opts.Token != "")
	return &RollbarLogger{local: local}
}

// Close flushes queued reports.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	return append(out, args...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.local.Debug(msg, args...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.local.Info(msg, args...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.local.Warn(msg, args...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.local.Error(msg, args...)
}
