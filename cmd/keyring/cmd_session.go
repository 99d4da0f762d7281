// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/sovereign-keyring/internal/keystroke"
)

func (a *app) initCmd() *cobra.Command {
	var duress string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the keyring with a primary and a duress passphrase",
		Long: `Creates the auth store in the data directory. The primary passphrase opens
the real keyring; the duress passphrase opens a decoy with its own keys.
Both must satisfy the password policy and must differ.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			primary, err := a.readNewPassphrase(cmd, a.passphrase, envPassphrase, "Primary passphrase: ")
			if err != nil {
				return err
			}
			defer clear(primary)

			duressPass, err := a.readNewPassphrase(cmd, duress, envDuressPassphrase, "Duress passphrase: ")
			if err != nil {
				return err
			}
			defer clear(duressPass)

			if err = a.services.SessionService.Setup(cmd.Context(), primary, duressPass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Keyring initialized in %s\n", a.cfg.Storage.DataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&duress, "duress-passphrase", "", "Duress passphrase (or set "+envDuressPassphrase+")")
	return cmd
}

func (a *app) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Check a passphrase and show the unlocked keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.unlock(cmd)
			if err != nil {
				return err
			}
			docs, err := sess.Documents.Documents()
			if err != nil {
				return err
			}
			// Output is identical for both personas.
			fmt.Fprintf(cmd.OutOrStdout(), "Unlocked. %d document(s) with keys.\n", len(docs))
			return nil
		},
	}
}

func (a *app) policyCmd() *cobra.Command {
	policy := &cobra.Command{
		Use:   "policy",
		Short: "Password policy",
	}
	policy.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check a passphrase against the password policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pass, err := a.readPassphrase(cmd, a.passphrase, envPassphrase, "Passphrase: ")
			if err != nil {
				return err
			}
			defer clear(pass)

			v := a.services.SessionService.Policy().Validate(string(pass))
			if a.output != "text" {
				return writeStructured(cmd.OutOrStdout(), a.output, v)
			}

			out := cmd.OutOrStdout()
			if v.Valid {
				fmt.Fprintln(out, "Passphrase satisfies the policy.")
				return nil
			}
			fmt.Fprintln(out, "Passphrase does not satisfy the policy:")
			for _, e := range v.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			return fmt.Errorf("%d policy violation(s)", len(v.Errors))
		},
	})
	return policy
}

func (a *app) canaryCmd() *cobra.Command {
	canaryCmd := &cobra.Command{
		Use:   "canary",
		Short: "Manage the canary phrase that locks the keyring when typed",
	}

	var clearPhrase bool
	set := &cobra.Command{
		Use:   "set [phrase]",
		Short: "Set or clear the canary phrase of the unlocked persona",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase := strings.Join(args, " ")
			if phrase == "" && !clearPhrase {
				return fmt.Errorf("give a phrase or --clear")
			}
			if _, err := a.unlock(cmd); err != nil {
				return err
			}
			if err := a.services.SessionService.SetCanary(cmd.Context(), phrase); err != nil {
				return err
			}
			if phrase == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Canary phrase cleared.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Canary phrase set.")
			}
			return nil
		},
	}
	set.Flags().BoolVar(&clearPhrase, "clear", false, "Remove the canary phrase")
	canaryCmd.AddCommand(set)

	canaryCmd.AddCommand(&cobra.Command{
		Use:   "test <text>",
		Short: "Report whether text would trip the canary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.unlock(cmd); err != nil {
				return err
			}
			if a.services.SessionService.ObserveInput(cmd.Context(), args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "Canary tripped. Keyring locked.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No canary.")
			return nil
		},
	})
	return canaryCmd
}

func (a *app) keystrokeCmd() *cobra.Command {
	ks := &cobra.Command{
		Use:   "keystroke",
		Short: "Keystroke rhythm verification",
	}
	ks.AddCommand(&cobra.Command{
		Use:   "enroll <profile.json>...",
		Short: "Enroll typing profiles for the unlocked persona",
		Long: `Builds a keystroke reference from at least three JSON typing profiles and
stores it sealed. Once enrolled, unlock requires --typing when keystroke
verification is enabled.`,
		Args: cobra.MinimumNArgs(keystroke.MinEnrollments),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := make([]keystroke.Profile, 0, len(args))
			for _, path := range args {
				p, err := readJSONFile[keystroke.Profile](path)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
			}

			if _, err := a.unlock(cmd); err != nil {
				return err
			}
			ref, err := a.services.SessionService.EnrollKeystrokes(cmd.Context(), profiles)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %d profiles (%d digraphs, threshold %.2f).\n",
				ref.EnrollmentCount, len(ref.Digraphs), ref.Threshold)
			return nil
		},
	})
	return ks
}
