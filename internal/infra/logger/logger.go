package logger

import (
	"io"
	"os"
	"strings"

	"billing_cycle_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

// Init initializes the global logger for a service (cycled, cyclectl) based on
// application configuration.
func Init(cfg *config.AppConfig, service string) {
	InitWithOutput(cfg, service, os.Stdout)
}

// InitWithOutput is Init writing to w. The CLI logs to stderr so command output stays clean.
func InitWithOutput(cfg *config.AppConfig, service string, w io.Writer) {
	Log.SetOutput(w)
	Log.ReplaceHooks(make(logrus.LevelHooks))
	Log.AddHook(&staticFields{fields: logrus.Fields{
		"service": service,
		"env":     strings.ToLower(cfg.Environment),
	}})

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		Log.SetLevel(logrus.InfoLevel)
	} else {
		Log.SetLevel(level)
	}

	if isStructuredEnv(cfg.Environment) {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.Debugf("Log level set to: %s", Log.GetLevel().String())
	Log.Debugf("Log format set for environment: %s", cfg.Environment)
}

func isStructuredEnv(env string) bool {
	env = strings.ToLower(env)
	return env == "production" || env == "staging"
}

// staticFields stamps every entry with fields that identify the process. Fields set
// on the entry itself win.
type staticFields struct {
	fields logrus.Fields
}

func (h *staticFields) Levels() []logrus.Level { return logrus.AllLevels }

func (h *staticFields) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// Get returns the configured global logger.
func Get() *logrus.Logger {
	return Log
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Log.WithField("component", component)
}
