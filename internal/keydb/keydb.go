// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package keydb stores the wrapped per-document keys of one persona.
//
// Each document maps to an append-only history of [crypto.WrappedDocumentKey]
// values; the last entry is the current key and older epochs are kept
// forever so historical snapshots stay decryptable. The whole map is
// encrypted as one blob under the persona's device key:
//
//	nonce (24 bytes) || XChaCha20-Poly1305(JSON {"entries": {...}})
//
// A KeyDatabase is not safe for concurrent use; callers serialize access.
package keydb

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

// KeyDatabase maps document ids to their key history.
type KeyDatabase struct {
	path    string
	kc      *crypto.KeyChain
	entries map[string][]crypto.WrappedDocumentKey
}

// persisted is the plaintext layout inside the encrypted file.
type persisted struct {
	Entries map[string][]crypto.WrappedDocumentKey `json:"entries"`
}

// New returns an empty database that will be saved to path.
func New(path string, kc *crypto.KeyChain) *KeyDatabase {
	return &KeyDatabase{
		path:    path,
		kc:      kc,
		entries: make(map[string][]crypto.WrappedDocumentKey),
	}
}

// Load decrypts the database at path with deviceKey.
//
// Errors:
//   - missing file → [crypto.ErrIO] also matching [os.ErrNotExist];
//   - file shorter than a nonce → [crypto.ErrIO];
//   - wrong device key or corruption → [crypto.ErrDecryptionFailed];
//   - undecodable plaintext → [crypto.ErrSerialization].
func Load(path string, deviceKey crypto.DeviceKey, kc *crypto.KeyChain) (*KeyDatabase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read key database: %w", crypto.ErrIO, err)
	}
	if len(data) < crypto.NonceSize {
		return nil, fmt.Errorf("%w: key database file too short", crypto.ErrIO)
	}

	nonce, err := crypto.NonceFromBytes(data[:crypto.NonceSize])
	if err != nil {
		return nil, err
	}

	key := deviceKey.Bytes()
	defer clear(key)

	plaintext, err := crypto.Decrypt(data[crypto.NonceSize:], nonce, key)
	if err != nil {
		return nil, fmt.Errorf("open key database: %w", err)
	}

	var p persisted
	if err = json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: decode key database: %w", crypto.ErrSerialization, err)
	}
	if p.Entries == nil {
		p.Entries = make(map[string][]crypto.WrappedDocumentKey)
	}

	return &KeyDatabase{path: path, kc: kc, entries: p.Entries}, nil
}

// Save encrypts the whole database under deviceKey and atomically replaces
// the file, creating parent directories as needed.
func (db *KeyDatabase) Save(deviceKey crypto.DeviceKey) error {
	plaintext, err := json.Marshal(persisted{Entries: db.entries})
	if err != nil {
		return fmt.Errorf("%w: encode key database: %w", crypto.ErrSerialization, err)
	}

	key := deviceKey.Bytes()
	defer clear(key)

	ciphertext, nonce, err := db.kc.Encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("seal key database: %w", err)
	}

	blob := make([]byte, 0, crypto.NonceSize+len(ciphertext))
	blob = append(blob, nonce[:]...)
	blob = append(blob, ciphertext...)

	if err = utils.WriteFileAtomic(db.path, blob, 0o600); err != nil {
		return fmt.Errorf("%w: write key database: %w", crypto.ErrIO, err)
	}
	return nil
}

// Path returns the file the database is saved to.
func (db *KeyDatabase) Path() string {
	return db.path
}

// Insert appends wrapped to the document's history. Existing entries are
// never replaced.
func (db *KeyDatabase) Insert(docID string, wrapped crypto.WrappedDocumentKey) {
	db.entries[docID] = append(db.entries[docID], wrapped)
}

// CreateDocumentKey generates a key for docID, wraps it under kek with
// epoch, appends it and returns the plaintext key for immediate use.
func (db *KeyDatabase) CreateDocumentKey(docID string, kek crypto.Kek, epoch uint32) (crypto.DocumentKey, error) {
	key, err := db.kc.GenerateDocumentKey()
	if err != nil {
		return crypto.DocumentKey{}, fmt.Errorf("generate document key: %w", err)
	}

	wrapped, err := db.kc.WrapDocumentKey(key, kek, epoch)
	if err != nil {
		key.Zero()
		return crypto.DocumentKey{}, err
	}

	db.Insert(docID, wrapped)
	return key, nil
}

// GetCurrent returns the most recently appended key for docID.
func (db *KeyDatabase) GetCurrent(docID string) (crypto.WrappedDocumentKey, error) {
	history := db.entries[docID]
	if len(history) == 0 {
		return crypto.WrappedDocumentKey{}, &KeyNotFoundError{DocID: docID}
	}
	return history[len(history)-1], nil
}

// GetByEpoch returns the first key for docID tagged with epoch.
func (db *KeyDatabase) GetByEpoch(docID string, epoch uint32) (crypto.WrappedDocumentKey, error) {
	for _, w := range db.entries[docID] {
		if w.Epoch == epoch {
			return w, nil
		}
	}
	return crypto.WrappedDocumentKey{}, &KeyNotFoundError{DocID: docID, Epoch: &epoch}
}

// UnwrapCurrent returns the plaintext current key for docID.
func (db *KeyDatabase) UnwrapCurrent(docID string, kek crypto.Kek) (crypto.DocumentKey, error) {
	w, err := db.GetCurrent(docID)
	if err != nil {
		return crypto.DocumentKey{}, err
	}
	return crypto.UnwrapDocumentKey(w, kek)
}

// UnwrapEpoch returns the plaintext key docID used at epoch.
func (db *KeyDatabase) UnwrapEpoch(docID string, epoch uint32, kek crypto.Kek) (crypto.DocumentKey, error) {
	w, err := db.GetByEpoch(docID, epoch)
	if err != nil {
		return crypto.DocumentKey{}, err
	}
	return crypto.UnwrapDocumentKey(w, kek)
}

// NextEpoch returns one past the highest epoch recorded for docID, or 1
// for a document with no keys.
func (db *KeyDatabase) NextEpoch(docID string) uint32 {
	var highest uint32
	for _, w := range db.entries[docID] {
		highest = max(highest, w.Epoch)
	}
	return highest + 1
}

// GetAll returns a copy of the document's full key history, oldest first.
func (db *KeyDatabase) GetAll(docID string) []crypto.WrappedDocumentKey {
	return slices.Clone(db.entries[docID])
}

// Contains reports whether docID has at least one key.
func (db *KeyDatabase) Contains(docID string) bool {
	return len(db.entries[docID]) > 0
}

// RemoveDocument forgets every key of docID. Content encrypted under those
// keys becomes unrecoverable.
func (db *KeyDatabase) RemoveDocument(docID string) {
	delete(db.entries, docID)
}

// DocumentIDs returns the ids of all documents with keys, sorted.
func (db *KeyDatabase) DocumentIDs() []string {
	ids := make([]string, 0, len(db.entries))
	for id, history := range db.entries {
		if len(history) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of documents with keys.
func (db *KeyDatabase) Len() int {
	return len(db.DocumentIDs())
}

// IsEmpty reports whether no document has a key.
func (db *KeyDatabase) IsEmpty() bool {
	return db.Len() == 0
}
