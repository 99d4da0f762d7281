// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
)

var guardianStatuses = []recovery.GuardianStatus{
	recovery.GuardianActive,
	recovery.GuardianPending,
	recovery.GuardianRevoked,
	recovery.GuardianUnresponsive,
}

func (a *app) guardianCmd() *cobra.Command {
	g := &cobra.Command{
		Use:   "guardian",
		Short: "Manage recovery guardians of the unlocked persona",
	}

	var name, contact, peerID string
	add := &cobra.Command{
		Use:   "add",
		Short: "Enroll a guardian",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.unlock(cmd); err != nil {
				return err
			}
			info, err := a.services.SessionService.AddGuardian(cmd.Context(), name, contact, peerID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added guardian %s (%s)\n", info.ID, info.Name)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "Guardian name (required)")
	add.Flags().StringVar(&contact, "contact", "", "How to reach the guardian")
	add.Flags().StringVar(&peerID, "peer-id", "", "Guardian device or peer id")
	_ = add.MarkFlagRequired("name")
	g.AddCommand(add)

	g.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List guardians",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.unlock(cmd); err != nil {
				return err
			}
			reg, err := a.services.SessionService.Guardians(cmd.Context())
			if err != nil {
				return err
			}
			if a.output != "text" {
				return writeStructured(cmd.OutOrStdout(), a.output, reg.Guardians)
			}
			if len(reg.Guardians) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No guardians.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCONTACT\tSTATUS\tFINGERPRINT")
			for _, gi := range reg.Guardians {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", gi.ID, gi.Name, gi.Contact, gi.Status, gi.Fingerprint())
			}
			return tw.Flush()
		},
	})

	var status string
	setStatus := &cobra.Command{
		Use:   "set-status <guardian-id>",
		Short: "Change a guardian's status (active, pending, revoked, unresponsive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := recovery.GuardianStatus(status)
			if !slices.Contains(guardianStatuses, st) {
				return fmt.Errorf("unknown guardian status %q", status)
			}
			if _, err := a.unlock(cmd); err != nil {
				return err
			}
			reg, err := a.services.SessionService.Guardians(cmd.Context())
			if err != nil {
				return err
			}
			if err = reg.SetStatus(args[0], st); err != nil {
				return err
			}
			if err = a.services.SessionService.SaveGuardians(cmd.Context(), reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Guardian %s is now %s\n", args[0], status)
			return nil
		},
	}
	setStatus.Flags().StringVar(&status, "status", string(recovery.GuardianActive), "New status")
	g.AddCommand(setStatus)

	return g
}
