// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
	"github.com/MKhiriev/sovereign-keyring/internal/service"
	"github.com/MKhiriev/sovereign-keyring/internal/workers"
)

func (a *app) recoveryCmd() *cobra.Command {
	rc := &cobra.Command{
		Use:   "recovery",
		Short: "Guardian-threshold recovery requests",
	}
	rc.AddCommand(
		a.recoveryInitiateCmd(),
		a.recoveryRespondCmd(),
		a.recoveryRejectCmd(),
		a.recoveryAdvanceCmd(),
		a.recoveryStatusCmd(),
		a.recoveryCompleteCmd(),
		a.recoveryAbortCmd(),
		a.recoveryWatchCmd(),
	)
	return rc
}

func (a *app) printRequest(cmd *cobra.Command, svc *service.RecoveryService, req *recovery.Request) error {
	v := newRequestView(req, svc.WaitingPeriodRemaining(req))
	if a.output != "text" {
		return writeStructured(cmd.OutOrStdout(), a.output, v)
	}
	writeRequestText(cmd.OutOrStdout(), v)
	return nil
}

func (a *app) recoveryInitiateCmd() *cobra.Command {
	var guardians []string
	cmd := &cobra.Command{
		Use:   "initiate",
		Short: "Start a recovery request",
		Long: `Starts a recovery request and its waiting period. Without --guardian the
active guardians of the unlocked persona are notified, which needs the
passphrase; with --guardian the request can be started while locked.
--threshold sets the shards needed; by default the configured threshold is
capped at the number of guardians.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}
			if len(guardians) == 0 {
				if _, err = a.unlock(cmd); err != nil {
					return err
				}
			}
			threshold := 0
			if cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Recovery.Threshold
			}
			req, err := svc.Initiate(cmd.Context(), threshold, guardians...)
			if err != nil {
				return err
			}
			return a.printRequest(cmd, svc, req)
		},
	}
	cmd.Flags().StringSliceVar(&guardians, "guardian", nil, "Guardian id to notify (repeatable)")
	return cmd
}

func (a *app) recoveryRespondCmd() *cobra.Command {
	var shardB64, shardFile string
	cmd := &cobra.Command{
		Use:   "approve <request-id> <guardian-id>",
		Short: "Record a guardian's approval and shard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shard, err := readShard(shardB64, shardFile)
			if err != nil {
				return err
			}
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}
			req, err := svc.Approve(cmd.Context(), args[0], args[1], shard)
			if err != nil {
				return err
			}
			return a.printRequest(cmd, svc, req)
		},
	}
	cmd.Flags().StringVar(&shardB64, "shard", "", "Guardian shard, base64")
	cmd.Flags().StringVar(&shardFile, "shard-file", "", "File holding the guardian shard")
	cmd.MarkFlagsMutuallyExclusive("shard", "shard-file")
	return cmd
}

func readShard(b64, path string) ([]byte, error) {
	switch {
	case b64 != "":
		shard, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode shard: %w", err)
		}
		return shard, nil
	case path != "":
		return os.ReadFile(path)
	default:
		return nil, errors.New("give --shard or --shard-file")
	}
}

func (a *app) recoveryRejectCmd() *cobra.Command {
	var timedOut bool
	cmd := &cobra.Command{
		Use:   "reject <request-id> <guardian-id>",
		Short: "Record that a guardian refused or did not answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}
			var req *recovery.Request
			if timedOut {
				req, err = svc.Timeout(cmd.Context(), args[0], args[1])
			} else {
				req, err = svc.Reject(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}
			return a.printRequest(cmd, svc, req)
		},
	}
	cmd.Flags().BoolVar(&timedOut, "timeout", false, "Record a timeout instead of a refusal")
	return cmd
}

func (a *app) recoveryAdvanceCmd() *cobra.Command {
	var force bool
	var operator, reason string
	cmd := &cobra.Command{
		Use:   "advance <request-id>",
		Short: "Move a request past its waiting period",
		Long: `Moves the request past its waiting period once it has elapsed. With --force
the waiting period is skipped under an audited override; this needs
--allow-override and both --operator and --reason.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}

			var req *recovery.Request
			var advanced bool
			if force {
				req, advanced, err = svc.ForceAdvance(cmd.Context(), args[0], recovery.AdminOverride{Operator: operator, Reason: reason})
			} else {
				req, advanced, err = svc.Advance(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if !advanced {
				fmt.Fprintln(cmd.ErrOrStderr(), "Request not advanced.")
			}
			return a.printRequest(cmd, svc, req)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip the waiting period (admin override)")
	cmd.Flags().StringVar(&operator, "operator", "", "Operator authorizing the override")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the override")
	return cmd
}

func (a *app) recoveryStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [request-id]",
		Short: "Show one request or every pending request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				req, err := svc.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printRequest(cmd, svc, req)
			}

			reqs, err := svc.Pending(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]requestView, 0, len(reqs))
			for _, req := range reqs {
				views = append(views, newRequestView(req, svc.WaitingPeriodRemaining(req)))
			}
			if a.output != "text" {
				return writeStructured(cmd.OutOrStdout(), a.output, views)
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending recovery requests.")
			}
			for _, v := range views {
				writeRequestText(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}

func (a *app) recoveryCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <request-id>",
		Short: "Mark a reconstructing request complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}
			req, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if req.State != recovery.Reconstructing {
				if _, started, err := svc.BeginReconstruction(cmd.Context(), args[0]); err != nil {
					return err
				} else if !started {
					return fmt.Errorf("request %s is %s, not ready to complete", args[0], req.State)
				}
			}
			req, err = svc.Complete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printRequest(cmd, svc, req)
		},
	}
}

func (a *app) recoveryAbortCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "abort <request-id>",
		Short: "Abort a recovery request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}
			req, err := svc.Abort(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return a.printRequest(cmd, svc, req)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "aborted by owner", "Reason recorded on the request")
	return cmd
}

func (a *app) recoveryWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Advance requests as their waiting periods end, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.recovery(cmd.Context())
			if err != nil {
				return err
			}

			w := workers.NewWorkers(
				workers.NewRecoveryWatcher(svc, a.cfg.Workers.RecoveryPollInterval, a.log),
			)
			w.Run(cmd.Context())
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching recovery requests every %s. Press Ctrl+C to stop.\n", a.cfg.Workers.RecoveryPollInterval)

			<-cmd.Context().Done()
			w.Stop()
			return nil
		},
	}
}
