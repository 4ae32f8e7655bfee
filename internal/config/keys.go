package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey means neither the environment nor the config carries a usable
// Anthropic API key.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// Key source labels reported by conductor config.
const (
	KeySourceEnv    = "environment"
	KeySourceConfig = "config file"
	KeySourceNone   = "unset"
)

// ResolveAPIKey returns the Anthropic API key, preferring ANTHROPIC_API_KEY
// over the config value. Config values may reference environment variables
// as ${VAR}; a reference that does not resolve counts as no key.
func (c *Config) ResolveAPIKey() (string, error) {
	key, source := c.apiKeyWithSource()
	if source == KeySourceNone {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// APIKeySource reports where ResolveAPIKey would take the key from.
func (c *Config) APIKeySource() string {
	_, source := c.apiKeyWithSource()
	return source
}

func (c *Config) apiKeyWithSource() (string, string) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, KeySourceEnv
	}
	if c == nil || c.Anthropic.APIKey == "" {
		return "", KeySourceNone
	}
	key := os.ExpandEnv(c.Anthropic.APIKey)
	if key == "" || strings.HasPrefix(key, "${") {
		// The configured value was a reference to an unset variable.
		return "", KeySourceNone
	}
	return key, KeySourceConfig
}

// ValidateAPIKey checks the shape of a key before it is stored. It does not
// call the API; a well-formed key can still be revoked or wrong.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, "sk-ant-"):
		return fmt.Errorf("API key must start with sk-ant-")
	case len(key) < 20:
		return fmt.Errorf("API key is too short to be real")
	}
	return nil
}

// MaskAPIKey renders a key safe for terminal output, keeping just enough of
// the ends to tell keys apart.
func MaskAPIKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 15:
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
