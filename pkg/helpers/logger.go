package helpers

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggerOption adjusts a logger built by NewLogger.
type LoggerOption func(*logrus.Logger)

// WithLevel overrides the environment's default level. Unknown names are
// ignored.
func WithLevel(level string) LoggerOption {
	return func(l *logrus.Logger) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			l.SetLevel(lvl)
		}
	}
}

func WithOutput(w io.Writer) LoggerOption {
	return func(l *logrus.Logger) { l.SetOutput(w) }
}

// staticFields stamps every entry so the API, the worker and idctl can share
// one log stream.
type staticFields logrus.Fields

func (staticFields) Levels() []logrus.Level { return logrus.AllLevels }

func (h staticFields) Fire(e *logrus.Entry) error {
	for k, v := range h {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// NewLogger creates a configured Logrus logger: text at debug level in
// development, JSON at info level elsewhere.
func NewLogger(appName, env string, opts ...LoggerOption) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.AddHook(staticFields{"app": appName, "env": env})
	for _, opt := range opts {
		opt(logger)
	}
	logger.Debug("logger initialized")
	return logger
}
