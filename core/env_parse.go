package core

import (
	"strconv"
	"strings"
)

// lookupFunc resolves one configuration key; "" means unset.
type lookupFunc func(key string) string

func valueOr(lookup lookupFunc, key, defaultValue string) string {
	if value := lookup(key); value != "" {
		return value
	}
	return defaultValue
}

// intOr returns defaultValue when key is unset or not an integer.
func intOr(lookup lookupFunc, key string, defaultValue int) int {
	if value := strings.TrimSpace(lookup(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// boolOr accepts true/1/yes/on and false/0/no/off, case-insensitive.
func boolOr(lookup lookupFunc, key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(lookup(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}
