package imagegen

import (
	"net"
	"net/url"
	"strings"
)

// IsAzureEndpoint reports whether endpoint is an Azure OpenAI resource.
//
// Example:
//
//	IsAzureEndpoint("https://myresource.openai.azure.com")            // true
//	IsAzureEndpoint("https://myresource.cognitiveservices.azure.com") // true
//	IsAzureEndpoint("https://api.openai.com")                         // false
func IsAzureEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "openai.azure.com") ||
		strings.Contains(lower, "cognitiveservices.azure.com")
}

// IsOpenAIEndpoint reports whether endpoint is the hosted OpenAI API.
func IsOpenAIEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	return strings.Contains(strings.ToLower(endpoint), "api.openai.com")
}

// IsLocalEndpoint reports whether endpoint points at this machine or a
// private network: localhost, loopback, unspecified, and RFC 1918 ranges.
//
// Example:
//
//	IsLocalEndpoint("http://localhost:7860")      // true
//	IsLocalEndpoint("http://192.168.1.100:7860")  // true
//	IsLocalEndpoint("https://spellforge.ai")      // false
func IsLocalEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Hostname()
	} else if h, _, err := net.SplitHostPort(endpoint); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate()
}
