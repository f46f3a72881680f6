package token

import (
	"time"
)

// ErrorRefreshAccessToken is the marker stored on a record whose refresh was rejected.
const ErrorRefreshAccessToken = "RefreshAccessTokenError"

// Record is the delegated grant held for one session.
type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt has whole-second precision. The mint time is rounded down, so it
	// can be up to a second before now + expires_in and never after it.
	ExpiresAt time.Time `json:"expires_at"`
	Error     string    `json:"error,omitempty"`
}

// Grant is a token response from the identity provider.
type Grant struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the provider's expires_in, zero when the response omitted it.
	ExpiresIn time.Duration
	// Expiry is the absolute expiry computed by the OAuth library, used only when ExpiresIn is zero.
	Expiry  time.Time
	Subject string
}

// NewRecord builds the record minted by a login at now.
func NewRecord(g Grant, now time.Time) Record {
	return Record{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    expiresAt(g, now),
	}
}

// Renewed returns the record after a successful refresh. The refresh token is only
// replaced when the provider rotated it.
func (r Record) Renewed(g Grant, now time.Time) Record {
	refreshToken := r.RefreshToken
	if g.RefreshToken != "" {
		refreshToken = g.RefreshToken
	}

	return Record{
		AccessToken:  g.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt(g, now),
	}
}

// Failed returns a copy of the record carrying the terminal refresh marker.
func (r Record) Failed() Record {
	r.Error = ErrorRefreshAccessToken
	return r
}

// HasFailed reports whether a refresh for this record was rejected.
func (r Record) HasFailed() bool {
	return r.Error != ""
}

// expiresAt truncates to the second, rounding the token's lifetime down.
func expiresAt(g Grant, now time.Time) time.Time {
	if g.ExpiresIn > 0 {
		return time.Unix(now.Unix(), 0).Add(g.ExpiresIn.Truncate(time.Second))
	}
	if !g.Expiry.IsZero() {
		return time.Unix(g.Expiry.Unix(), 0)
	}
	// No lifetime reported at all: treat as already expired so the next use refreshes.
	return time.Unix(now.Unix(), 0)
}
