// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstep/pipeline/internal/log"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "steppipe",
	Short:   "Turn a stream of agent messages into a stream of Steps",
	Long:    "steppipe reads line-delimited agent transcript messages and groups them into Steps using a configurable detection, buffering, and control pipeline.",
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $STEPPIPE_DATA_DIR/steppipe.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	cobra.OnInitialize(func() {
		if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
			os.Setenv("STEPPIPE_LOG_LEVEL", v)
		}
		if v, _ := rootCmd.PersistentFlags().GetString("log-format"); v != "" {
			os.Setenv("STEPPIPE_LOG_FORMAT", v)
		}
		log.SetLogger(log.FromEnv())
	})
}
