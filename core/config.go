package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider identifiers accepted in SPELLFORGE_PROVIDER.
const (
	ProviderDallE      = "DALL_E"
	ProviderSDAPI      = "SDAPI_V1"
	ProviderSpellforge = "SPELLFORGE"
)

// KnownProviders lists every provider identifier in display order.
var KnownProviders = []string{ProviderDallE, ProviderSDAPI, ProviderSpellforge}

// Defaults for zero-config use against a local stable-diffusion-webui.
const (
	DefaultProvider       = ProviderSDAPI
	DefaultSDAPIHost      = "http://localhost:7860"
	DefaultSpellforgeHost = "https://spellforge.ai"
	DefaultImageModel     = "dall-e-2"
	DefaultImageTimeoutMS = 20000
	DefaultPollIntervalMS = 1000
	DefaultHTTPTimeoutSec = 120
	DefaultDownloadsDir   = "downloads"
)

// Config holds all configuration values
type Config struct {
	// Provider selects the backend (DALL_E, SDAPI_V1 or SPELLFORGE)
	Provider string

	// Hosted image API (OpenAI Images)
	OpenAIAPIKey     string
	OpenAIBaseURL    string // Optional override, e.g. a proxy
	OpenAIImageModel string

	// stable-diffusion-webui
	SDAPIHost     string
	SDAPIUsername string // Optional basic auth
	SDAPIPassword string

	// Spellforge gateway
	SpellforgeAPIKey     string
	SpellforgeCredential string // Bearer token of the signed-in user
	SpellforgeHost       string

	// Job waiting
	ImageTimeout time.Duration // Deadline for one generation (default: 20s)
	PollInterval time.Duration // Progress/result poll interval (default: 1s)

	// HTTP
	HTTPTimeout          time.Duration
	AllowSelfSignedCerts bool

	// Output
	DownloadsDir string
	LogLevel     string
	LogFile      string
	DevMode      bool
}

// LoadConfig loads configuration from environment variables with defaults
// that target a local stable-diffusion-webui. Credentials are only required
// for the selected provider, and that check is left to the provider
// constructors and ConfigValidator.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Getenv)
}

// LoadConfigFile loads configuration from a dotenv file or, for .yaml/.yml
// paths, a YAML document. Environment variables take precedence over the
// file so deployments can override single values.
func LoadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ErrEnvFileMissing(path)
	}

	var values map[string]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		values, err = readYAMLConfig(path)
	default:
		values, err = godotenv.Read(path)
	}
	if err != nil {
		return nil, ErrInvalidConfigFile(path, err.Error())
	}

	return loadConfig(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return values[key]
	})
}

func loadConfig(lookup lookupFunc) (*Config, error) {
	provider := strings.ToUpper(strings.TrimSpace(valueOr(lookup, "SPELLFORGE_PROVIDER", DefaultProvider)))
	if !isValidProviderID(provider) {
		return nil, ErrInvalidValue("SPELLFORGE_PROVIDER", fmt.Sprintf("%q is not a provider identifier (letters, digits and underscores)", provider))
	}

	openAIKey := lookup("OPENAI_API_KEY")
	if openAIKey == "" {
		openAIKey = lookup("OPENAI_KEY") // Legacy support
	}

	imageTimeout := time.Duration(intOr(lookup, "IMAGE_TIMEOUT_MS", DefaultImageTimeoutMS)) * time.Millisecond
	if imageTimeout <= 0 {
		return nil, ErrInvalidValue("IMAGE_TIMEOUT_MS", "must be a positive number of milliseconds")
	}
	pollInterval := time.Duration(intOr(lookup, "IMAGE_POLL_INTERVAL_MS", DefaultPollIntervalMS)) * time.Millisecond
	if pollInterval <= 0 {
		return nil, ErrInvalidValue("IMAGE_POLL_INTERVAL_MS", "must be a positive number of milliseconds")
	}

	return &Config{
		Provider: provider,

		OpenAIAPIKey:     openAIKey,
		OpenAIBaseURL:    lookup("OPENAI_BASE_URL"),
		OpenAIImageModel: valueOr(lookup, "OPENAI_IMAGE_MODEL", DefaultImageModel),

		SDAPIHost:     strings.TrimRight(valueOr(lookup, "SDAPI_HOST", DefaultSDAPIHost), "/"),
		SDAPIUsername: lookup("SDAPI_USERNAME"),
		SDAPIPassword: lookup("SDAPI_PASSWORD"),

		SpellforgeAPIKey:     lookup("SPELLFORGE_API_KEY"),
		SpellforgeCredential: lookup("SPELLFORGE_CREDENTIAL"),
		SpellforgeHost:       strings.TrimRight(valueOr(lookup, "SPELLFORGE_HOST", DefaultSpellforgeHost), "/"),

		ImageTimeout: imageTimeout,
		PollInterval: pollInterval,

		HTTPTimeout:          time.Duration(intOr(lookup, "HTTP_TIMEOUT", DefaultHTTPTimeoutSec)) * time.Second,
		AllowSelfSignedCerts: boolOr(lookup, "ALLOW_SELF_SIGNED_CERTS", false),

		DownloadsDir: valueOr(lookup, "DOWNLOADS_DIR", DefaultDownloadsDir),
		LogLevel:     valueOr(lookup, "LOG_LEVEL", "info"),
		LogFile:      lookup("LOG_FILE"),
		DevMode:      boolOr(lookup, "DEV_MODE", false),
	}, nil
}

// fileConfig is the YAML layout accepted by LoadConfigFile.
type fileConfig struct {
	Provider string `yaml:"provider"`
	OpenAI   struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		ImageModel string `yaml:"image_model"`
	} `yaml:"openai"`
	SDAPI struct {
		Host     string `yaml:"host"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"sdapi"`
	Spellforge struct {
		APIKey     string `yaml:"api_key"`
		Credential string `yaml:"credential"`
		Host       string `yaml:"host"`
	} `yaml:"spellforge"`
	Image struct {
		TimeoutMS      int `yaml:"timeout_ms"`
		PollIntervalMS int `yaml:"poll_interval_ms"`
	} `yaml:"image"`
	HTTP struct {
		TimeoutSeconds       int   `yaml:"timeout_seconds"`
		AllowSelfSignedCerts *bool `yaml:"allow_self_signed_certs"`
	} `yaml:"http"`
	DownloadsDir string `yaml:"downloads_dir"`
	Log          struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	DevMode *bool `yaml:"dev_mode"`
}

// readYAMLConfig decodes path and flattens it onto the environment keys.
func readYAMLConfig(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}

	values := map[string]string{
		"SPELLFORGE_PROVIDER":   fc.Provider,
		"OPENAI_API_KEY":        fc.OpenAI.APIKey,
		"OPENAI_BASE_URL":       fc.OpenAI.BaseURL,
		"OPENAI_IMAGE_MODEL":    fc.OpenAI.ImageModel,
		"SDAPI_HOST":            fc.SDAPI.Host,
		"SDAPI_USERNAME":        fc.SDAPI.Username,
		"SDAPI_PASSWORD":        fc.SDAPI.Password,
		"SPELLFORGE_API_KEY":    fc.Spellforge.APIKey,
		"SPELLFORGE_CREDENTIAL": fc.Spellforge.Credential,
		"SPELLFORGE_HOST":       fc.Spellforge.Host,
		"DOWNLOADS_DIR":         fc.DownloadsDir,
		"LOG_LEVEL":             fc.Log.Level,
		"LOG_FILE":              fc.Log.File,
	}
	if fc.Image.TimeoutMS != 0 {
		values["IMAGE_TIMEOUT_MS"] = fmt.Sprint(fc.Image.TimeoutMS)
	}
	if fc.Image.PollIntervalMS != 0 {
		values["IMAGE_POLL_INTERVAL_MS"] = fmt.Sprint(fc.Image.PollIntervalMS)
	}
	if fc.HTTP.TimeoutSeconds != 0 {
		values["HTTP_TIMEOUT"] = fmt.Sprint(fc.HTTP.TimeoutSeconds)
	}
	if fc.HTTP.AllowSelfSignedCerts != nil {
		values["ALLOW_SELF_SIGNED_CERTS"] = fmt.Sprint(*fc.HTTP.AllowSelfSignedCerts)
	}
	if fc.DevMode != nil {
		values["DEV_MODE"] = fmt.Sprint(*fc.DevMode)
	}
	return values, nil
}

// isValidProviderID accepts the built-in ids and any id a custom factory
// could be registered under: a letter followed by letters, digits or
// underscores.
func isValidProviderID(id string) bool {
	if id == "" {
		return false
	}
	for i, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r == '_' || (r >= '0' && r <= '9'):
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isKnownProvider(id string) bool {
	for _, p := range KnownProviders {
		if p == id {
			return true
		}
	}
	return false
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on AllowSelfSignedCerts
// This should be used for all HTTP requests to external APIs to ensure TLS configuration is respected
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// GetDefaultHTTPClient returns an HTTP client using cfg.HTTPTimeout (120s when unset)
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	timeout := DefaultHTTPTimeoutSec * time.Second
	if cfg != nil && cfg.HTTPTimeout > 0 {
		timeout = cfg.HTTPTimeout
	}
	return GetHTTPClient(cfg, timeout)
}

// HasCredentials reports whether the selected provider has what its
// constructor requires.
func (c *Config) HasCredentials() bool {
	switch c.Provider {
	case ProviderDallE:
		return c.OpenAIAPIKey != ""
	case ProviderSpellforge:
		return c.SpellforgeAPIKey != "" && c.SpellforgeCredential != ""
	case ProviderSDAPI:
		return c.SDAPIHost != ""
	}
	return false
}
