// Package crypto implements the symmetric key hierarchy of the keyring:
//
//	passphrase ─Argon2id─▶ MasterKey ─HKDF(device id)─▶ DeviceKey
//	DeviceKey  ─wraps─▶ Kek ─wraps─▶ DocumentKey (one per document per epoch)
//
// Every wrap and every buffer encryption uses XChaCha20-Poly1305 with a
// fresh random 24-byte nonce. Randomness and Argon2id parameters are owned
// by a [KeyChain] so tests can inject a deterministic source; unwrapping
// and decryption are pure functions.
//
// Key types never expose their bytes through fmt or encoding/json. Raw
// bytes are only reachable via Bytes, which returns a copy.
package crypto
