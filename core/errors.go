package core

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing  = "ENV_FILE_MISSING"
	ErrCodeInvalidFile     = "INVALID_CONFIG_FILE"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeMissingAuth     = "MISSING_AUTH"
	ErrCodeUnknownProvider = "UNKNOWN_PROVIDER"
	ErrCodeInvalidValue    = "INVALID_VALUE"
)

// ErrEnvFileMissing returns an error for missing configuration file
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the required values",
	}
}

// ErrInvalidConfigFile returns an error for a configuration file that cannot be parsed
func ErrInvalidConfigFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidFile,
		Message: fmt.Sprintf("Cannot parse configuration file %s: %s", path, reason),
		Action:  "Fix the file syntax (KEY=value for .env, mappings for .yaml)",
	}
}

// ErrInvalidURL returns an error for an invalid host URL
func ErrInvalidURL(varName, url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid %s URL '%s': %s", varName, url, reason),
		Action:  fmt.Sprintf("Set %s to a valid URL (e.g., http://localhost:7860)", varName),
	}
}

// ErrMissingAuth returns an error for missing authentication credentials
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "openai":
		action = "Set OPENAI_API_KEY in your .env file. Keys are issued at https://platform.openai.com/account/api-keys"
	case "spellforge":
		action = "Set SPELLFORGE_API_KEY and SPELLFORGE_CREDENTIAL in your .env file"
	case "sdapi":
		action = "Set both SDAPI_USERNAME and SDAPI_PASSWORD, or neither"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrUnknownProvider returns an error for an unsupported SPELLFORGE_PROVIDER value
func ErrUnknownProvider(provider string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownProvider,
		Message: fmt.Sprintf("Unknown image provider: %q", provider),
		Action:  fmt.Sprintf("Set SPELLFORGE_PROVIDER to one of %s", strings.Join(KnownProviders, ", ")),
	}
}

// ErrInvalidValue returns an error for a value outside its accepted range
func ErrInvalidValue(varName, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s: %s", varName, reason),
		Action:  fmt.Sprintf("Fix %s in your .env file", varName),
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
