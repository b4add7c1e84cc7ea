package core

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL validates that a URL has a valid format with http or https scheme.
// This is a pure function with no side effects.
//
// Returns nil if the URL is valid, or an error describing the validation failure.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got: %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// ValidateAPIKey validates that an API key is non-empty and has reasonable format.
// This is a pure function that does NOT verify the key with any service.
func ValidateAPIKey(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)

	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	// Basic sanity check - API keys should have some minimum length
	if len(apiKey) < 8 {
		return fmt.Errorf("API key appears invalid: too short (minimum 8 characters)")
	}

	return nil
}

// ValidateBasicAuth checks that username and password are either both set or both empty.
func ValidateBasicAuth(username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	switch {
	case username == "" && password != "":
		return fmt.Errorf("authentication incomplete: username required when password is provided")
	case username != "" && password == "":
		return fmt.Errorf("authentication incomplete: password required when username is provided")
	}
	return nil
}
