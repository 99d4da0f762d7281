// Package recovery holds the guardian side of social key recovery: the
// threshold [Request] state machine and the owner's guardian [Registry].
//
// Shard transport and the secret-sharing arithmetic live elsewhere; this
// package only tracks who answered what and when enough shards are in.
package recovery
