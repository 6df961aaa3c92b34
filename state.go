package oauthkit

import (
	"crypto/rand"
	"encoding/base64"
)

// NewState returns an unguessable 256-bit value for the OAuth 2.0 state
// parameter. It doubles as the anti-forgery token for the flow.
func NewState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("oauthkit: reading random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
