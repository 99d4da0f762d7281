// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/keystroke"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
	"github.com/MKhiriev/sovereign-keyring/internal/service"
	"github.com/MKhiriev/sovereign-keyring/internal/store"
)

const (
	envPassphrase       = config.EnvPrefix + "PASSPHRASE"
	envDuressPassphrase = config.EnvPrefix + "DURESS_PASSPHRASE"
)

// app holds the state shared by every command of one invocation.
type app struct {
	flags *config.StructuredConfig

	passphrase string
	typingFile string
	verbose    bool
	output     string
	stdin      *bufio.Reader

	cfg      *config.StructuredConfig
	log      *logger.Logger
	repos    *store.Repositories
	services *service.Services
}

func newRootCmd() *cobra.Command {
	a := &app{}
	fs, flags := config.NewFlagSet("keyring")
	a.flags = flags

	root := &cobra.Command{
		Use:           "keyring",
		Short:         "Sovereign keyring: identities, document keys and guardian recovery",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().AddGoFlagSet(fs)
	root.PersistentFlags().StringVar(&a.passphrase, "passphrase", "", "Passphrase (or set "+envPassphrase+")")
	root.PersistentFlags().StringVar(&a.typingFile, "typing", "", "JSON typing profile for keystroke verification")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log to stderr instead of the log file")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format: text, json, yaml")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.initCmd())
	root.AddCommand(a.unlockCmd())
	root.AddCommand(a.policyCmd())
	root.AddCommand(a.canaryCmd())
	root.AddCommand(a.keystrokeCmd())
	root.AddCommand(a.dockeyCmd())
	root.AddCommand(a.guardianCmd())
	root.AddCommand(a.recoveryCmd())

	return root
}

// setup loads configuration and builds the logger. The recovery database
// is only opened by commands that need it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.verbose {
		a.log = logger.NewLogger("keyring")
	} else {
		a.log = logger.NewFileLogger("keyring", cfg.Storage.Path(config.LogFile))
	}
	cmd.SetContext(a.log.WithContext(cmd.Context()))

	a.services = service.NewServices(nil, *cfg, a.log)
	return nil
}

// recovery opens the recovery database and points the recovery service at
// it. The session service, and any open session, are kept.
func (a *app) recovery(ctx context.Context) (*service.RecoveryService, error) {
	if a.repos == nil {
		repos, err := store.NewRepositories(ctx, a.cfg.Storage.DB, a.log)
		if err != nil {
			return nil, err
		}
		a.repos = repos
		a.services.RecoveryService = service.NewRecoveryService(
			repos.RecoveryRepository, a.services.SessionService, *a.cfg, nil, nil, a.log)
	}
	return a.services.RecoveryService, nil
}

func (a *app) close() error {
	if a.services != nil {
		a.services.SessionService.Lock()
	}
	if a.repos != nil {
		return a.repos.Close()
	}
	return nil
}

// unlock opens the keyring with the passphrase and optional typing
// profile given on the command line.
func (a *app) unlock(cmd *cobra.Command) (*service.Session, error) {
	pass, err := a.readPassphrase(cmd, a.passphrase, envPassphrase, "Passphrase: ")
	if err != nil {
		return nil, err
	}
	defer clear(pass)

	var typing *keystroke.Profile
	if a.typingFile != "" {
		p, err := readJSONFile[keystroke.Profile](a.typingFile)
		if err != nil {
			return nil, err
		}
		typing = &p
	}

	return a.services.SessionService.Unlock(cmd.Context(), pass, typing)
}

func readJSONFile[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err = json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}
