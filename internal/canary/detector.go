// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package canary watches typed text for a secret phrase that, once seen,
// puts the keyring into lockdown.
package canary

import (
	"sync"
	"unicode/utf8"
)

// Detector keeps a rolling window of the last 2×len(phrase) runes and
// reports when the window ends with the phrase. It is safe for concurrent
// use.
type Detector struct {
	mu     sync.Mutex
	phrase []rune
	buffer []rune
}

// NewDetector returns a detector for phrase. An empty phrase never
// triggers.
func NewDetector(phrase string) *Detector {
	p := []rune(phrase)
	return &Detector{
		phrase: p,
		buffer: make([]rune, 0, 2*len(p)),
	}
}

// PhraseLen returns the phrase length in runes.
func (d *Detector) PhraseLen() int {
	return len(d.phrase)
}

// FeedRune appends r and reports whether the phrase has just been typed.
func (d *Detector) FeedRune(r rune) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.feed(r)
}

// FeedString feeds s rune by rune, stopping at the first trigger.
func (d *Detector) FeedString(s string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if d.feed(r) {
			return true
		}
	}
	return false
}

// Reset clears the rolling window.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.buffer)
	d.buffer = d.buffer[:0]
}

func (d *Detector) feed(r rune) bool {
	if len(d.phrase) == 0 {
		return false
	}

	d.buffer = append(d.buffer, r)
	if limit := 2 * len(d.phrase); len(d.buffer) > limit {
		drop := len(d.buffer) - limit
		copy(d.buffer, d.buffer[drop:])
		clear(d.buffer[limit:])
		d.buffer = d.buffer[:limit]
	}

	return endsWith(d.buffer, d.phrase)
}

func endsWith(buf, suffix []rune) bool {
	if len(buf) < len(suffix) {
		return false
	}
	tail := buf[len(buf)-len(suffix):]
	for i := range suffix {
		if tail[i] != suffix[i] {
			return false
		}
	}
	return true
}
