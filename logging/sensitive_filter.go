package logging

import (
	"fmt"
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePattern is a secret detector and its replacement.
type sensitivePattern struct {
	re   *regexp.Regexp
	repl string
}

// sensitivePatterns detect secrets inside free-form values.
var sensitivePatterns = []sensitivePattern{
	{regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`), RedactedPlaceholder},          // OpenAI keys, sk-... and sk-proj-...
	{regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._~+/=-]{8,})`), RedactedPlaceholder}, // Authorization: Bearer <credential>
	{regexp.MustCompile(`(?i)(basic\s+[a-zA-Z0-9+/=]{8,})`), RedactedPlaceholder},      // Authorization: Basic <user:pass>
	{regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;]{6,})`), RedactedPlaceholder},     // ApiKey header or apikey=...
	{regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{6,})`), RedactedPlaceholder},
	{regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{4,})`), RedactedPlaceholder},
	{regexp.MustCompile(`(?i)(credential\s*[:=]\s*[^\s,;]{6,})`), RedactedPlaceholder},
	{regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`), RedactedPlaceholder},
	{regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`), "://" + RedactedPlaceholder + "@"}, // user:pass@ in URLs
}

// sensitiveFieldNames are substrings of field or variable names whose
// values are never logged.
var sensitiveFieldNames = []string{
	"API_KEY",
	"APIKEY",
	"CREDENTIAL",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"AUTHORIZATION",
}

// dataURLPattern matches base64 data URLs long enough to flood a log line.
var dataURLPattern = regexp.MustCompile(`data:([a-zA-Z0-9.+/-]+);base64,([A-Za-z0-9+/=]{64,})`)

// RedactSensitiveData scans a string value and redacts any detected secret.
//
// Example:
//
//	RedactSensitiveData("Authorization: Bearer eyJhbGciOi...")
//	// "Authorization: [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, p := range sensitivePatterns {
		result = p.re.ReplaceAllString(result, p.repl)
	}
	return result
}

// ShortenDataURLs replaces the payload of embedded base64 data URLs with its
// length, e.g. "data:image/png;base64,<5120 chars>".
func ShortenDataURLs(value string) string {
	if !strings.Contains(value, "data:") {
		return value
	}
	return dataURLPattern.ReplaceAllStringFunc(value, func(m string) string {
		sub := dataURLPattern.FindStringSubmatch(m)
		return fmt.Sprintf("data:%s;base64,<%d chars>", sub[1], len(sub[2]))
	})
}

// SanitizeValue applies ShortenDataURLs then RedactSensitiveData.
func SanitizeValue(value string) string {
	return RedactSensitiveData(ShortenDataURLs(value))
}

// IsSensitiveField returns true if the field name indicates sensitive data.
// Matching ignores case and the separators "-" and "_" so that "apiKey",
// "api-key" and "SPELLFORGE_API_KEY" all match.
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(fieldName)
	compact := strings.NewReplacer("_", "", "-", "").Replace(upper)

	for _, name := range sensitiveFieldNames {
		if strings.Contains(upper, name) || strings.Contains(compact, strings.ReplaceAll(name, "_", "")) {
			return true
		}
	}
	return false
}

// RedactField redacts a field value if the field name indicates sensitive
// data, otherwise sanitizes the value itself.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return SanitizeValue(fieldValue)
}

// ContainsSensitiveData returns true if the value contains any sensitive data patterns.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}
	for _, p := range sensitivePatterns {
		if p.re.MatchString(value) {
			return true
		}
	}
	return false
}
