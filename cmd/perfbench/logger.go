// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// newLogger builds the zap-backed logger. verbose enables V(1) output and
// zap's development settings. format is "auto", "console" or "json"; auto
// picks console output when stderr is a terminal.
func newLogger(verbose bool, format string) (logr.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	}

	encoding, err := logEncoding(format, term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		return logr.Discard(), err
	}
	zapConfig.Encoding = encoding
	if encoding == "console" {
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zapLog, err := zapConfig.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to create logger: %w", err)
	}
	return zapr.NewLogger(zapLog), nil
}

func logEncoding(format string, terminal bool) (string, error) {
	switch format {
	case "auto":
		if terminal {
			return "console", nil
		}
		return "json", nil
	case "console", "json":
		return format, nil
	default:
		return "", fmt.Errorf("unknown log format %q, expected auto, console or json", format)
	}
}
