// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Fluffstat - Furby Connect BLE Protocol Tool
//
// A CLI tool for controlling Furby Connect toys and uploading DLC content.

package main

import (
	"os"

	"github.com/Thermoquad/fluffstat/cmd"
	"go.uber.org/zap"
)

func main() {
	err := cmd.Execute()
	zap.L().Sync()
	os.Exit(cmd.ExitCode(err))
}
