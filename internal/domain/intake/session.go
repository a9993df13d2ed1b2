package intake

import "github.com/google/uuid"

// IDFunc generates patient session identifiers.
type IDFunc func() string

// NewSessionID returns a time-ordered identifier: a millisecond timestamp
// prefix followed by random bits (UUIDv7). Uniqueness is probabilistic; no
// registry is consulted.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
