// Package storage holds the key space served by memkv.
//
// Two backends implement Storage and are chosen once at startup:
//
//   - Volatile: in-memory map only; Save and Load are no-ops
//   - Durable: in-memory map plus a snapshot file (see package snapshot)
//
// Both guard the whole map with one RWMutex. Expiry is enforced lazily on
// read; the Maintainer can sweep expired keys and write periodic snapshots.
package storage
