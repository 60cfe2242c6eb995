// Package cache stores HTTP responses for the caching proxy.
package cache

import "time"

// Provider stores and retrieves cache entries.
// Entries are looked up by key prefix, since one request URI may have
// several stored variants (see the Vary header).
//
// Implementations must be thread-safe!
type Provider interface {
	// All returns all unexpired entries that have the specific key prefix.
	All(prefix string) ([]Entry, error)
	// Put stores the entry, replacing any entry with the same key.
	Put(Entry) error
	// Purge removes the entry for the given key. Purging a missing key is not an error.
	Purge(key string) error
	// Has checks if the specified key exists in the cache, expired or not.
	Has(key string) bool
	// Len returns the number of stored entries, expired or not.
	Len() int
	Close() error
}

type Entry struct {
	Key string
	// Entries are not returned after they expire.
	Expires time.Time
	// The value of the clock when the request that resulted in the entry was sent.
	RequestedAt time.Time
	// The value of the clock when the response was received.
	ReceivedAt time.Time
	// HTTP/1.1 representation of the response.
	Bytes []byte
}

// Expired reports whether the entry has expired at the given time.
// Entries without an expiration time are always expired.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.Expires)
}
