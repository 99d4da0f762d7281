// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package keydb

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound matches every [*KeyNotFoundError].
var ErrKeyNotFound = errors.New("document key not found")

// KeyNotFoundError reports a document with no key, or no key for the
// requested epoch.
type KeyNotFoundError struct {
	DocID string
	// Epoch is nil when the lookup was for the current key.
	Epoch *uint32
}

func (e *KeyNotFoundError) Error() string {
	if e.Epoch != nil {
		return fmt.Sprintf("%s: %s@epoch=%d", ErrKeyNotFound, e.DocID, *e.Epoch)
	}
	return fmt.Sprintf("%s: %s", ErrKeyNotFound, e.DocID)
}

// Is makes errors.Is(err, ErrKeyNotFound) hold.
func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}
