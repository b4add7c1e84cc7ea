package core

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// CheckStatus is the outcome of one configuration check.
type CheckStatus int

const (
	CheckPassed CheckStatus = iota
	CheckFailed
	CheckWarning
	CheckSkipped
)

// String returns the string representation of a check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPassed:
		return "passed"
	case CheckFailed:
		return "failed"
	case CheckWarning:
		return "warning"
	case CheckSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ValidationResult represents the result of a configuration validation check.
type ValidationResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Error   error
}

// Valid reports whether the check did not fail.
func (r ValidationResult) Valid() bool {
	return r.Status != CheckFailed
}

// ConfigValidator composes validation atoms to check a loaded Config.
// Checks for providers other than the selected one are skipped, so a
// DALL_E setup does not fail on a missing gateway credential.
type ConfigValidator struct {
	cfg *Config
}

// NewConfigValidator creates a validator for cfg.
func NewConfigValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// CheckProvider validates the selected provider identifier. An id outside
// the built-in set only warns: it needs a factory registered at runtime.
func (v *ConfigValidator) CheckProvider() ValidationResult {
	r := ValidationResult{Name: "Provider"}
	if !isValidProviderID(v.cfg.Provider) {
		r.Status = CheckFailed
		r.Message = "Invalid provider identifier"
		r.Error = ErrInvalidValue("SPELLFORGE_PROVIDER", fmt.Sprintf("%q is not a provider identifier", v.cfg.Provider))
		return r
	}
	if !isKnownProvider(v.cfg.Provider) {
		r.Status = CheckWarning
		r.Message = fmt.Sprintf("%s is not built in; a factory must be registered for it", v.cfg.Provider)
		return r
	}
	r.Message = v.cfg.Provider
	return r
}

// CheckOpenAI validates the hosted image API settings.
func (v *ConfigValidator) CheckOpenAI() ValidationResult {
	r := ValidationResult{Name: "OpenAI Images"}
	if v.cfg.Provider != ProviderDallE {
		r.Status = CheckSkipped
		r.Message = "not selected"
		return r
	}
	if err := ValidateAPIKey(v.cfg.OpenAIAPIKey); err != nil {
		r.Status = CheckFailed
		r.Message = "API key missing or invalid"
		r.Error = ErrMissingAuth("openai")
		return r
	}
	if v.cfg.OpenAIBaseURL != "" {
		if err := ValidateURL(v.cfg.OpenAIBaseURL); err != nil {
			r.Status = CheckFailed
			r.Message = "Base URL invalid"
			r.Error = ErrInvalidURL("OPENAI_BASE_URL", v.cfg.OpenAIBaseURL, err.Error())
			return r
		}
	}
	r.Message = fmt.Sprintf("API key configured, model %s", v.cfg.OpenAIImageModel)
	return r
}

// CheckSDAPI validates the stable-diffusion-webui settings.
func (v *ConfigValidator) CheckSDAPI() ValidationResult {
	r := ValidationResult{Name: "Stable Diffusion WebUI"}
	if v.cfg.Provider != ProviderSDAPI {
		r.Status = CheckSkipped
		r.Message = "not selected"
		return r
	}
	if err := ValidateURL(v.cfg.SDAPIHost); err != nil {
		r.Status = CheckFailed
		r.Message = "Host invalid"
		r.Error = ErrInvalidURL("SDAPI_HOST", v.cfg.SDAPIHost, err.Error())
		return r
	}
	if err := ValidateBasicAuth(v.cfg.SDAPIUsername, v.cfg.SDAPIPassword); err != nil {
		r.Status = CheckFailed
		r.Message = err.Error()
		r.Error = ErrMissingAuth("sdapi")
		return r
	}
	if v.cfg.SDAPIHost == DefaultSDAPIHost {
		r.Status = CheckWarning
		r.Message = "using the default local host; the web UI must run on this machine"
		return r
	}
	r.Message = v.cfg.SDAPIHost
	return r
}

// CheckSpellforge validates the gateway settings.
func (v *ConfigValidator) CheckSpellforge() ValidationResult {
	r := ValidationResult{Name: "Spellforge Gateway"}
	if v.cfg.Provider != ProviderSpellforge {
		r.Status = CheckSkipped
		r.Message = "not selected"
		return r
	}
	if v.cfg.SpellforgeAPIKey == "" || v.cfg.SpellforgeCredential == "" {
		r.Status = CheckFailed
		r.Message = "API key or credential missing"
		r.Error = ErrMissingAuth("spellforge")
		return r
	}
	if err := ValidateURL(v.cfg.SpellforgeHost); err != nil {
		r.Status = CheckFailed
		r.Message = "Host invalid"
		r.Error = ErrInvalidURL("SPELLFORGE_HOST", v.cfg.SpellforgeHost, err.Error())
		return r
	}
	r.Message = v.cfg.SpellforgeHost
	return r
}

// CheckTimeouts warns when the poll interval would allow at most one probe.
func (v *ConfigValidator) CheckTimeouts() ValidationResult {
	r := ValidationResult{Name: "Timeouts"}
	if v.cfg.ImageTimeout <= 0 || v.cfg.PollInterval <= 0 {
		r.Status = CheckFailed
		r.Message = "timeout and poll interval must be positive"
		r.Error = ErrInvalidValue("IMAGE_TIMEOUT_MS", "must be positive")
		return r
	}
	if v.cfg.PollInterval >= v.cfg.ImageTimeout {
		r.Status = CheckWarning
		r.Message = fmt.Sprintf("poll interval %s is not shorter than timeout %s", v.cfg.PollInterval, v.cfg.ImageTimeout)
		return r
	}
	r.Message = fmt.Sprintf("timeout %s, interval %s", v.cfg.ImageTimeout, v.cfg.PollInterval)
	return r
}

// ValidateAll runs all configuration checks and returns all results.
func (v *ConfigValidator) ValidateAll() []ValidationResult {
	return []ValidationResult{
		v.CheckProvider(),
		v.CheckOpenAI(),
		v.CheckSDAPI(),
		v.CheckSpellforge(),
		v.CheckTimeouts(),
	}
}

// ValidateRequired returns the first failing check's error, or nil.
func (v *ConfigValidator) ValidateRequired() error {
	for _, r := range v.ValidateAll() {
		if r.Status == CheckFailed {
			return r.Error
		}
	}
	return nil
}

// IsValid returns true if all required configuration is valid.
func (v *ConfigValidator) IsValid() bool {
	return v.ValidateRequired() == nil
}

// CountValid returns the number of checks that did not fail.
func (v *ConfigValidator) CountValid() int {
	count := 0
	for _, r := range v.ValidateAll() {
		if r.Valid() {
			count++
		}
	}
	return count
}

// PrintReport writes a colored summary of every check to w.
func (v *ConfigValidator) PrintReport(w io.Writer) bool {
	results := v.ValidateAll()

	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintf(w, "━━━ Configuration Check ━━━\n")
	fmt.Fprintln(w)

	failed := 0
	for _, r := range results {
		var icon string
		var clr *color.Color
		switch r.Status {
		case CheckPassed:
			icon, clr = "✓", color.New(color.FgGreen)
		case CheckFailed:
			icon, clr = "✗", color.New(color.FgRed)
			failed++
		case CheckWarning:
			icon, clr = "!", color.New(color.FgYellow)
		default:
			icon, clr = "○", color.New(color.FgHiBlack)
		}

		clr.Fprintf(w, "  %s %s", icon, r.Name)
		if r.Message != "" {
			color.New(color.FgHiBlack).Fprintf(w, " - %s", r.Message)
		}
		fmt.Fprintln(w)

		if r.Status == CheckFailed && r.Error != nil {
			color.New(color.FgRed).Fprintf(w, "    └─ %s\n", r.Error.Error())
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "Configuration OK")
		return true
	}
	color.New(color.FgRed, color.Bold).Fprintf(w, "%d check(s) failed\n", failed)
	return false
}
