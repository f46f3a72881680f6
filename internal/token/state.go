package token

// State is the lifecycle position of a session's record.
type State string

const (
	StateNone       State = "none"
	StateFresh      State = "fresh"
	StateExpired    State = "expired"
	StateRefreshing State = "refreshing"
	StateFailed     State = "failed"
)
