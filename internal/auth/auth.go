package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	JSONContentType = "application/json"

	APIKeyEnv = "GROQ_API_KEY"
)

// ErrMissingAPIKey is returned when no credential was supplied at runtime
var ErrMissingAPIKey = errors.New("api key is not configured, set " + APIKeyEnv)

// Credentials hold the static bearer credential for the completion provider.
// The key is only ever sourced from runtime configuration.
type Credentials struct {
	apiKey string
}

// NewCredentials validates the key and wraps it
func NewCredentials(apiKey string) (*Credentials, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Credentials{apiKey: apiKey}, nil
}

// Authorize attaches the bearer header to req
func (c *Credentials) Authorize(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
}

// String redacts the key so Credentials are safe to log
func (c *Credentials) String() string {
	if len(c.apiKey) <= 4 {
		return "Bearer ****"
	}
	return "Bearer ****" + c.apiKey[len(c.apiKey)-4:]
}
