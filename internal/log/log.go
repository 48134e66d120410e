// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package log provides the pipeline's structured logging.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func init() {
	logger = FromEnv()
}

// FromEnv builds a logger from STEPPIPE_LOG_LEVEL / STEPPIPE_LOG_FORMAT.
// Level defaults to "info"; format defaults to "console" ("json" selects
// production encoding). Unparseable values fall back to the defaults
// instead of failing construction, since a bad log config must never
// block pipeline startup.
func FromEnv() *zap.Logger {
	level := zapcore.InfoLevel
	if v := os.Getenv("STEPPIPE_LOG_LEVEL"); v != "" {
		if err := level.Set(v); err != nil {
			level = zapcore.InfoLevel
		}
	}

	cfg := zap.NewDevelopmentConfig()
	if os.Getenv("STEPPIPE_LOG_FORMAT") == "json" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	l, err := cfg.Build()
	if err != nil {
		l, _ = zap.NewDevelopment()
	}
	return l
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// SetLogger sets the global logger. Components constructed after this call
// pick it up via With(); components holding an earlier *zap.Logger reference
// do not change retroactively.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// With returns a logger with additional fields, e.g. log.With(zap.String("step_id", id)).
func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return logger.Sync()
}
