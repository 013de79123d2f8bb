package events

import "math/rand/v2"

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 8
)

// IDGenerator returns a new candidate event ID.
type IDGenerator func() string

// RandomID returns an 8-character base-36 identifier.
func RandomID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}
