// Package logging configures structured JSON logging for the client.
package logging

import (
	log "github.com/sirupsen/logrus"
)

// ConfigureJSON sets the logger to emit JSON entries with a severity field.
func ConfigureJSON(logger *log.Logger) {
	if logger == nil {
		return
	}

	logger.SetFormatter(&log.JSONFormatter{})
	logger.AddHook(SeverityHook{})
}

// SeverityHook adds a severity field to log entries so collectors that key
// on severity rather than level classify them correctly.
type SeverityHook struct{}

func (SeverityHook) Levels() []log.Level {
	return log.AllLevels
}

func (SeverityHook) Fire(entry *log.Entry) error {
	if entry == nil {
		return nil
	}
	if _, ok := entry.Data["severity"]; ok {
		return nil
	}

	entry.Data["severity"] = severityForLevel(entry.Level)
	return nil
}

func severityForLevel(level log.Level) string {
	switch level {
	case log.PanicLevel:
		return "emergency"
	case log.FatalLevel:
		return "critical"
	case log.ErrorLevel:
		return "error"
	case log.WarnLevel:
		return "warning"
	case log.InfoLevel:
		return "info"
	case log.DebugLevel, log.TraceLevel:
		return "debug"
	default:
		return "default"
	}
}
