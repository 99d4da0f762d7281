// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package auth

import "errors"

// ErrAuthenticationFailed is the only error [AuthStore.Authenticate]
// returns for a passphrase that does not open the store. Wrong passphrase,
// tampered probe and tampered wrapped KEK are indistinguishable by design
// of the store format.
var ErrAuthenticationFailed = errors.New("authentication failed")
