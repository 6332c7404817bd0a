package domain

import "time"

// Exchange is a single recorded utterance and the reply it received.
type Exchange struct {
	PK         string
	SK         string
	ID         string
	SessionID  string
	Utterance  string
	Normalized string
	Rule       string
	Reply      string
	CreatedAt  time.Time
	TTL        int64
}
