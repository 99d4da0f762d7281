// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Command keyring manages a local sovereign keyring: a two-persona auth
// store, per-document key epochs and guardian recovery requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			printBuildInfo(cmd)
		},
	}
}

func printBuildInfo(cmd *cobra.Command) {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Build version: %s\n", buildVersion)
	fmt.Fprintf(out, "Build date: %s\n", buildDate)
	fmt.Fprintf(out, "Build commit: %s\n", buildCommit)
}
