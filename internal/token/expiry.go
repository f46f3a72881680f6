package token

import "time"

// IsValid reports whether rec may authorize a new outbound request at now.
// The comparison is strict: a token is expired exactly at ExpiresAt.
func IsValid(rec Record, now time.Time) bool {
	return rec.Error == "" && now.Before(rec.ExpiresAt)
}
