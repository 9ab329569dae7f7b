/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 Ouranosinc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the process logr.Logger handle, backed by
// zap, that every component receives through constructor injection.
// There is no package-global logger: callers build one value at
// startup and pass it down.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names used by the CLI's -q/-d/-l flags and accepted by New.
const (
	LevelQuiet = "quiet"
	LevelDebug = "debug"
	LevelInfo  = "info"
)

// New builds a logr.Logger backed by a zap production (JSON) logger at
// the requested level.
func New(name, level string) (logr.Logger, error) {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return logr.Logger{}, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("building zap logger: %w", err)
	}
	return zapr.NewLogger(zl).WithName(name), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelQuiet:
		return zapcore.ErrorLevel, nil
	default:
		if l, err := zapcore.ParseLevel(level); err == nil {
			return l, nil
		}
		return 0, fmt.Errorf("unrecognized log level %q", level)
	}
}
