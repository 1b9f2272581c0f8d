// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package logging provides the structured logger used across the voice
// bridge, backed by zap's SugaredLogger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the structured logging contract shared by every package in
// this module. It exposes both the plain printf-style variants and the
// structured key/value variants so callers can pick whichever fits.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, kv ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, kv ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, kv ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, kv ...interface{})

	Sync() error
}

type sugaredLogger struct {
	s *zap.SugaredLogger
}

// Options controls how the logger is built.
type Options struct {
	Level      string
	JSON       bool
	FilePath   string // when set, logs also rotate to this file via lumberjack
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger from Options. An unknown Level falls back to info.
func New(opts Options) (Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			level = zapcore.InfoLevel
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.FilePath != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 3),
			MaxAge:     nonZero(opts.MaxAgeDays, 28),
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &sugaredLogger{s: base.Sugar()}, nil
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &sugaredLogger{s: zap.NewNop().Sugar()}
}

func (l *sugaredLogger) Debug(args ...interface{})                 { l.s.Debug(args...) }
func (l *sugaredLogger) Debugf(template string, args ...interface{}) { l.s.Debugf(template, args...) }
func (l *sugaredLogger) Debugw(msg string, kv ...interface{})      { l.s.Debugw(msg, kv...) }

func (l *sugaredLogger) Info(args ...interface{})                  { l.s.Info(args...) }
func (l *sugaredLogger) Infof(template string, args ...interface{}) { l.s.Infof(template, args...) }
func (l *sugaredLogger) Infow(msg string, kv ...interface{})       { l.s.Infow(msg, kv...) }

func (l *sugaredLogger) Warn(args ...interface{})                  { l.s.Warn(args...) }
func (l *sugaredLogger) Warnf(template string, args ...interface{}) { l.s.Warnf(template, args...) }
func (l *sugaredLogger) Warnw(msg string, kv ...interface{})       { l.s.Warnw(msg, kv...) }

func (l *sugaredLogger) Error(args ...interface{})                  { l.s.Error(args...) }
func (l *sugaredLogger) Errorf(template string, args ...interface{}) { l.s.Errorf(template, args...) }
func (l *sugaredLogger) Errorw(msg string, kv ...interface{})       { l.s.Errorw(msg, kv...) }

func (l *sugaredLogger) Sync() error { return l.s.Sync() }
