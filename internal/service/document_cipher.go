// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/keydb"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
)

// EncryptedContent is a document body sealed under one epoch of its key.
type EncryptedContent struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Epoch      uint32 `json:"epoch"`
}

// RotationPolicy says when a document key is due for rotation. Zero fields
// disable the corresponding check.
type RotationPolicy struct {
	MaxAge     time.Duration
	MaxCommits int
}

// keyUsage tracks how a document key has been used since this process
// first touched its current epoch.
type keyUsage struct {
	epoch       uint32
	firstUsed   time.Time
	encryptions int
}

// DocumentCipher encrypts document content with per-document keys held in
// a [keydb.KeyDatabase]. It serializes access to the database and saves it
// after every change. A DocumentCipher is safe for concurrent use.
//
// Once its session is locked every operation returns [ErrNotUnlocked] and
// the database is never touched again.
type DocumentCipher struct {
	mu        sync.Mutex
	closed    bool
	gate      func() error
	kc        *crypto.KeyChain
	db        *keydb.KeyDatabase
	kek       crypto.Kek
	deviceKey crypto.DeviceKey
	policy    RotationPolicy
	usage     map[string]*keyUsage
	now       Clock
}

// NewDocumentCipher wraps db. kek wraps document keys and deviceKey
// encrypts the database file.
func NewDocumentCipher(kc *crypto.KeyChain, db *keydb.KeyDatabase, kek crypto.Kek, deviceKey crypto.DeviceKey, policy RotationPolicy, now Clock) *DocumentCipher {
	if now == nil {
		now = systemClock
	}
	return &DocumentCipher{
		kc:        kc,
		db:        db,
		kek:       kek,
		deviceKey: deviceKey,
		policy:    policy,
		usage:     make(map[string]*keyUsage),
		now:       now,
	}
}

// Encrypt seals content under the current key of docID, creating epoch 1
// on first use.
func (c *DocumentCipher) Encrypt(ctx context.Context, docID string, content []byte) (EncryptedContent, error) {
	log := logger.FromContext(ctx)
	if docID == "" {
		return EncryptedContent{}, ErrEmptyDocumentID
	}

	if err := c.acquire(); err != nil {
		return EncryptedContent{}, err
	}
	defer c.mu.Unlock()

	key, epoch, err := c.currentKey(docID)
	if err != nil {
		log.Err(err).Str("func", "DocumentCipher.Encrypt").Str("doc_id", docID).Msg("failed to obtain document key")
		return EncryptedContent{}, err
	}
	defer key.Zero()

	enc, err := c.seal(content, key, epoch)
	if err != nil {
		log.Err(err).Str("func", "DocumentCipher.Encrypt").Str("doc_id", docID).Msg("failed to encrypt document")
		return EncryptedContent{}, err
	}
	c.recordUse(docID, epoch)

	return enc, nil
}

// Decrypt opens content sealed by [DocumentCipher.Encrypt] using the key of
// the epoch recorded in enc.
func (c *DocumentCipher) Decrypt(ctx context.Context, docID string, enc EncryptedContent) ([]byte, error) {
	log := logger.FromContext(ctx)

	nonce, err := crypto.NonceFromBytes(enc.Nonce)
	if err != nil {
		return nil, err
	}

	if err = c.acquire(); err != nil {
		return nil, err
	}
	key, err := c.db.UnwrapEpoch(docID, enc.Epoch, c.kek)
	c.mu.Unlock()
	if err != nil {
		log.Err(err).Str("func", "DocumentCipher.Decrypt").Str("doc_id", docID).Uint32("epoch", enc.Epoch).Msg("failed to unwrap document key")
		return nil, err
	}
	defer key.Zero()

	raw := key.Bytes()
	defer clear(raw)

	return crypto.Decrypt(enc.Ciphertext, nonce, raw)
}

// Rotate creates the next epoch key for docID and returns the new epoch.
// Older epochs remain available for decryption.
func (c *DocumentCipher) Rotate(ctx context.Context, docID string) (uint32, error) {
	log := logger.FromContext(ctx)
	if docID == "" {
		return 0, ErrEmptyDocumentID
	}

	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	epoch := c.db.NextEpoch(docID)
	key, err := c.db.CreateDocumentKey(docID, c.kek, epoch)
	if err != nil {
		log.Err(err).Str("func", "DocumentCipher.Rotate").Str("doc_id", docID).Msg("failed to create document key")
		return 0, err
	}
	key.Zero()

	if err = c.db.Save(c.deviceKey); err != nil {
		log.Err(err).Str("func", "DocumentCipher.Rotate").Str("doc_id", docID).Msg("failed to save key database")
		return 0, err
	}
	delete(c.usage, docID)

	log.Info().Str("func", "DocumentCipher.Rotate").Str("doc_id", docID).Uint32("epoch", epoch).Msg("document key rotated")
	return epoch, nil
}

// NeedsRotation reports whether the current key of docID has exceeded the
// rotation policy during this process's lifetime.
func (c *DocumentCipher) NeedsRotation(docID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.usage[docID]
	if !ok || c.closed {
		return false
	}
	if c.policy.MaxCommits > 0 && u.encryptions >= c.policy.MaxCommits {
		return true
	}
	return c.policy.MaxAge > 0 && c.now().Sub(u.firstUsed) >= c.policy.MaxAge
}

// Epochs lists the key epochs stored for docID, oldest first.
func (c *DocumentCipher) Epochs(docID string) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotUnlocked
	}

	all := c.db.GetAll(docID)
	out := make([]uint32, 0, len(all))
	for _, w := range all {
		out = append(out, w.Epoch)
	}
	return out, nil
}

// Documents lists the ids of every document with a key, sorted.
func (c *DocumentCipher) Documents() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotUnlocked
	}
	return c.db.DocumentIDs(), nil
}

// MigrationPlan is one plaintext document to encrypt.
type MigrationPlan struct {
	DocID   string
	Content []byte
}

// MigrationResult is the encrypted form of one planned document, with
// ciphertext and nonce in standard base64.
type MigrationResult struct {
	DocID      string `json:"doc_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Epoch      uint32 `json:"epoch"`
}

// MigrateDocuments encrypts each plan under a fresh key at the document's
// next epoch and reports progress after every document. It stops at the
// first error or when ctx is cancelled; the keys created so far are saved
// either way and the results for them are returned.
func (c *DocumentCipher) MigrateDocuments(ctx context.Context, plans []MigrationPlan, progress func(done, total int)) ([]MigrationResult, error) {
	log := logger.FromContext(ctx)

	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	results := make([]MigrationResult, 0, len(plans))
	var runErr error
	for i, plan := range plans {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if plan.DocID == "" {
			runErr = fmt.Errorf("plan %d: %w", i, ErrEmptyDocumentID)
			break
		}

		epoch := c.db.NextEpoch(plan.DocID)
		key, err := c.db.CreateDocumentKey(plan.DocID, c.kek, epoch)
		if err != nil {
			runErr = fmt.Errorf("create key for %s: %w", plan.DocID, err)
			break
		}
		enc, err := c.seal(plan.Content, key, epoch)
		key.Zero()
		if err != nil {
			runErr = fmt.Errorf("encrypt %s: %w", plan.DocID, err)
			break
		}
		c.recordUse(plan.DocID, epoch)

		results = append(results, MigrationResult{
			DocID:      plan.DocID,
			Ciphertext: base64.StdEncoding.EncodeToString(enc.Ciphertext),
			Nonce:      base64.StdEncoding.EncodeToString(enc.Nonce),
			Epoch:      epoch,
		})
		if progress != nil {
			progress(i+1, len(plans))
		}
	}

	if len(results) > 0 {
		if err := c.db.Save(c.deviceKey); err != nil {
			log.Err(err).Str("func", "DocumentCipher.MigrateDocuments").Msg("failed to save key database")
			return nil, err
		}
	}
	if runErr != nil {
		log.Err(runErr).Str("func", "DocumentCipher.MigrateDocuments").Int("done", len(results)).Int("total", len(plans)).Msg("migration stopped")
		return results, runErr
	}

	log.Info().Str("func", "DocumentCipher.MigrateDocuments").Int("total", len(plans)).Msg("documents migrated")
	return results, nil
}

// acquire checks the re-authentication gate and then takes c.mu, failing
// with [ErrNotUnlocked] once the cipher is closed. The gate runs before
// c.mu is taken because it locks the owning [SessionService].
func (c *DocumentCipher) acquire() error {
	if c.gate != nil {
		if err := c.gate(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotUnlocked
	}
	return nil
}

// currentKey returns the current key of docID, creating and saving epoch 1
// when the document has none. Callers hold c.mu.
func (c *DocumentCipher) currentKey(docID string) (crypto.DocumentKey, uint32, error) {
	if c.db.Contains(docID) {
		wrapped, err := c.db.GetCurrent(docID)
		if err != nil {
			return crypto.DocumentKey{}, 0, err
		}
		key, err := crypto.UnwrapDocumentKey(wrapped, c.kek)
		return key, wrapped.Epoch, err
	}

	key, err := c.db.CreateDocumentKey(docID, c.kek, 1)
	if err != nil {
		return crypto.DocumentKey{}, 0, err
	}
	if err = c.db.Save(c.deviceKey); err != nil {
		key.Zero()
		return crypto.DocumentKey{}, 0, err
	}
	return key, 1, nil
}

func (c *DocumentCipher) seal(content []byte, key crypto.DocumentKey, epoch uint32) (EncryptedContent, error) {
	raw := key.Bytes()
	defer clear(raw)

	ct, nonce, err := c.kc.Encrypt(content, raw)
	if err != nil {
		return EncryptedContent{}, err
	}
	return EncryptedContent{Ciphertext: ct, Nonce: nonce[:], Epoch: epoch}, nil
}

func (c *DocumentCipher) recordUse(docID string, epoch uint32) {
	u, ok := c.usage[docID]
	if !ok || u.epoch != epoch {
		u = &keyUsage{epoch: epoch, firstUsed: c.now()}
		c.usage[docID] = u
	}
	u.encryptions++
}

// zero scrubs the keys held by the cipher and closes it.
func (c *DocumentCipher) zero() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.kek.Zero()
	c.deviceKey.Zero()
}
