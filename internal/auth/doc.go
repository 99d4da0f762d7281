// Package auth implements deniable dual-persona authentication.
//
// An [AuthStore] holds two entries, one per [Persona]. Each entry carries a
// KEK wrapped under a device key derived from that persona's passphrase,
// plus a "probe": a fixed tag encrypted under the same device key. A
// passphrase is matched to a persona by whichever probe it decrypts, so
// the file never states which entry is which, and a wrong passphrase looks
// exactly like any other failure.
package auth
