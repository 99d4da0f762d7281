// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

// readPassphrase returns the passphrase from the flag value, then the
// environment variable env, then the terminal without echo. When stdin is
// not a terminal one line is read from it instead.
func (a *app) readPassphrase(cmd *cobra.Command, flagValue, env, prompt string) ([]byte, error) {
	if flagValue != "" {
		return []byte(flagValue), nil
	}
	if v := os.Getenv(env); v != "" {
		return []byte(v), nil
	}

	fd := int(os.Stdin.Fd())
	if !interactive(cmd) {
		if a.stdin == nil {
			a.stdin = bufio.NewReader(cmd.InOrStdin())
		}
		line, err := a.stdin.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				return nil, fmt.Errorf("read passphrase: %w", err)
			}
			return nil, errors.New("empty passphrase")
		}
		return []byte(line), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return pass, nil
}

// readNewPassphrase is [app.readPassphrase] with a confirmation prompt when the
// passphrase is typed interactively.
func (a *app) readNewPassphrase(cmd *cobra.Command, flagValue, env, prompt string) ([]byte, error) {
	if flagValue != "" || os.Getenv(env) != "" || !interactive(cmd) {
		return a.readPassphrase(cmd, flagValue, env, prompt)
	}

	first, err := a.readPassphrase(cmd, "", env, prompt)
	if err != nil {
		return nil, err
	}
	second, err := a.readPassphrase(cmd, "", env, "Confirm "+strings.ToLower(prompt[:1])+prompt[1:])
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)

	if !crypto.ConstantTimeEqual(first, second) {
		clear(first)
		return nil, errPassphraseMismatch
	}
	return first, nil
}

// interactive reports whether cmd reads from a terminal on stdin.
func interactive(cmd *cobra.Command) bool {
	return cmd.InOrStdin() == io.Reader(os.Stdin) && term.IsTerminal(int(os.Stdin.Fd()))
}
