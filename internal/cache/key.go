// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package cache

import "time"

// TTL classes for catalog metadata. The cache has no default TTL; callers
// pass the class that matches the volatility of what they store.
const (
	// TTLTrending covers trending lists, which rotate a few times a day.
	TTLTrending = 6 * time.Hour

	// TTLSearch covers search results, the most volatile class.
	TTLSearch = 2 * time.Hour

	// TTLDetails covers per-title detail records, which rarely change.
	TTLDetails = 24 * time.Hour

	// TTLAvailability covers availability lookups against the library.
	TTLAvailability = 12 * time.Hour
)

// KeyDelimiter separates the segments of a derived cache key.
const KeyDelimiter = "_"

// DeriveKey builds the canonical cache key for a piece of catalog metadata:
//
//	<source>_<externalID>_<subtype>
//
// e.g. DeriveKey("tmdb", "603", "movie") == "tmdb_603_movie". The function
// is pure: equal inputs always produce equal keys. source and subtype must
// not contain the delimiter; externalID may, since the first and last
// segments being delimiter-free keeps keys unambiguous.
func DeriveKey(source, externalID, subtype string) string {
	return source + KeyDelimiter + externalID + KeyDelimiter + subtype
}
