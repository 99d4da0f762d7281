// Package config provides configuration loading, merging, and validation
// facilities for the keyring.
//
// Configuration is assembled from multiple sources in the following priority
// order (earlier sources win for non-zero fields):
//  1. Command-line flags
//  2. Environment variables (KEYRING_ prefix)
//  3. JSON config file
//  4. Built-in defaults
//
// The main entry points are [NewFlagSet], which binds flags into a partial
// config, and [Load], which merges every source and validates the result.
package config
