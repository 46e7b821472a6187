package websocket

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateConnID generates a new unique connection identity.
func GenerateConnID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-conn-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
