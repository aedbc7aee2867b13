// Package gologger resolves the coordinator's glog logger and bridges it to
// the go-job logger contract used by the retention sweep worker.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	// LoggerName is the logger name the coordinator resolves by default.
	LoggerName      = "accounttx"
	// SweepLoggerName names the retention sweep worker's logger.
	SweepLoggerName = LoggerName + ".sweep"
)

// Resolve picks provider over logger over nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

func ResolveService(provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return Resolve(LoggerName, provider, logger)
}

// ResolveForJob resolves name like Resolve and also returns the go-job
// views of the result. The go-job values are nil only when resolution
// yields nil.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)

	var (
		jobProvider job.LoggerProvider
		jobLogger   job.Logger
	)
	if resolvedProvider != nil {
		jobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	if resolvedLogger != nil {
		jobLogger = job.GoLogger(resolvedLogger)
	}
	return resolvedProvider, resolvedLogger, jobProvider, jobLogger
}

// ResolveSweepWorker returns the go-job logger for the retention sweep.
func ResolveSweepWorker(provider glog.LoggerProvider, logger glog.Logger) job.Logger {
	_, _, _, jobLogger := ResolveForJob(SweepLoggerName, provider, logger)
	return jobLogger
}
