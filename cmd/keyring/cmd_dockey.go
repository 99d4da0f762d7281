// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/sovereign-keyring/internal/service"
)

// docKeyView is the printable state of one document's keys.
type docKeyView struct {
	DocID         string   `json:"doc_id" yaml:"doc_id"`
	Epochs        []uint32 `json:"epochs" yaml:"epochs"`
	Current       uint32   `json:"current" yaml:"current"`
	NeedsRotation bool     `json:"needs_rotation" yaml:"needs_rotation"`
}

func (a *app) dockeyCmd() *cobra.Command {
	dk := &cobra.Command{
		Use:   "dockey",
		Short: "Manage per-document key epochs",
	}

	dk.AddCommand(&cobra.Command{
		Use:   "create <doc-id>",
		Short: "Create the first key for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.unlock(cmd)
			if err != nil {
				return err
			}
			existing, err := sess.Documents.Epochs(args[0])
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("document %q already has a key; use rotate", args[0])
			}
			epoch, err := sess.Documents.Rotate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created key for %s at epoch %d\n", args[0], epoch)
			return nil
		},
	})

	dk.AddCommand(&cobra.Command{
		Use:   "rotate <doc-id>",
		Short: "Add a new key epoch for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.unlock(cmd)
			if err != nil {
				return err
			}
			epoch, err := sess.Documents.Rotate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rotated %s to epoch %d\n", args[0], epoch)
			return nil
		},
	})

	dk.AddCommand(&cobra.Command{
		Use:   "show [doc-id]",
		Short: "Show key epochs for one document or all documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.unlock(cmd)
			if err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				if ids, err = sess.Documents.Documents(); err != nil {
					return err
				}
			}
			views := make([]docKeyView, 0, len(ids))
			for _, id := range ids {
				epochs, err := sess.Documents.Epochs(id)
				if err != nil {
					return err
				}
				if len(epochs) == 0 {
					return fmt.Errorf("document %q has no keys", id)
				}
				views = append(views, docKeyView{
					DocID:         id,
					Epochs:        epochs,
					Current:       slices.Max(epochs),
					NeedsRotation: sess.Documents.NeedsRotation(id),
				})
			}

			if a.output != "text" {
				return writeStructured(cmd.OutOrStdout(), a.output, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No document keys.")
			}
			for _, v := range views {
				fmt.Fprintf(out, "%s\tcurrent epoch %d\tepochs %v\n", v.DocID, v.Current, v.Epochs)
			}
			return nil
		},
	})

	var outFile string
	migrate := &cobra.Command{
		Use:   "migrate <file>...",
		Short: "Encrypt plaintext files under fresh document keys",
		Long: `Encrypts each file under a new key epoch, using the file's base name as the
document id, and writes the results as JSON with base64 ciphertext.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plans := make([]service.MigrationPlan, 0, len(args))
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				plans = append(plans, service.MigrationPlan{DocID: filepath.Base(path), Content: content})
			}

			sess, err := a.unlock(cmd)
			if err != nil {
				return err
			}
			results, err := sess.Documents.MigrateDocuments(cmd.Context(), plans, func(done, total int) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\rMigrated %d/%d", done, total)
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil && len(results) == 0 {
				return err
			}

			w := cmd.OutOrStdout()
			if outFile != "" {
				f, ferr := os.OpenFile(outFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
				if ferr != nil {
					return ferr
				}
				defer f.Close()
				w = f
			}
			if werr := writeStructured(w, "json", results); werr != nil {
				return werr
			}
			return err
		},
	}
	migrate.Flags().StringVar(&outFile, "out", "", "Write results to this file instead of stdout")
	dk.AddCommand(migrate)

	return dk
}
