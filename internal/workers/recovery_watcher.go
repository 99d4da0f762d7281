// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/logger"
)

// DefaultRecoveryPollInterval is used when the watcher is given a
// non-positive interval.
const DefaultRecoveryPollInterval = time.Minute

// RecoveryWatcher periodically advances recovery requests whose waiting
// period has elapsed. It is idle until Start is called.
type RecoveryWatcher struct {
	advancer RecoveryAdvancer
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRecoveryWatcher creates a watcher polling advancer every interval.
func NewRecoveryWatcher(advancer RecoveryAdvancer, interval time.Duration, log *logger.Logger) *RecoveryWatcher {
	if interval <= 0 {
		interval = DefaultRecoveryPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecoveryWatcher{
		advancer: advancer,
		interval: interval,
		logger:   log,
	}
}

// Start implements [Worker]. It stops any previously running loop, checks
// once immediately and then on every tick until ctx is cancelled or Stop is
// called.
func (w *RecoveryWatcher) Start(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		t := time.NewTicker(w.interval)
		defer t.Stop()

		w.tick(jobCtx)
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				w.tick(jobCtx)
			}
		}
	}()
}

// Stop implements [Worker]. It cancels the loop and blocks until it has
// exited.
func (w *RecoveryWatcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *RecoveryWatcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	advanced, err := w.advancer.AdvanceDue(ctx)
	if err != nil {
		w.logger.Err(err).Str("func", "RecoveryWatcher.tick").Msg("failed to advance due recovery requests")
		return
	}
	if advanced > 0 {
		w.logger.Info().Str("func", "RecoveryWatcher.tick").Int("advanced", advanced).Msg("recovery requests moved to shard collection")
	}
}
