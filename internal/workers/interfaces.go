// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package workers provides abstractions for managing and running
// background workers in the keyring.
// It defines the Worker interface and a Workers aggregate that allows
// starting and stopping multiple workers in a unified way.
package workers

import "context"

// Worker is the interface that must be implemented by any background worker.
//
// Start must not block: implementations spawn their own goroutine, which
// exits when ctx is cancelled or Stop is called. Stop blocks until that
// goroutine has exited and is a no-op on a worker that is not running.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}

// RecoveryAdvancer moves every recovery request whose waiting period has
// elapsed into the shard collection phase and reports how many it moved.
type RecoveryAdvancer interface {
	AdvanceDue(ctx context.Context) (int, error)
}
