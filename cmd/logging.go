// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// setupLogging installs the global logger. Debug output goes to stderr with
// --verbose; otherwise only warnings and errors are logged.
func setupLogging(cmd *cobra.Command, args []string) error {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		logger, err = cfg.Build()
	}
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)
	return nil
}
