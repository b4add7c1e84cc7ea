package pnginfo

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Markers that split the parameters text into prompt, negative prompt and
// the comma-separated settings line.
const (
	NegativePromptMarker = "Negative prompt:"
	StepsMarker          = "Steps:"
)

// OverrideSettings holds settings the web service applies for a single
// request instead of its global options.
type OverrideSettings struct {
	SDModelCheckpoint string `json:"sd_model_checkpoint"`
}

// GenerationParameters is the typed view of a "parameters" annotation.
// Optional fields are nil when absent or unparsable.
type GenerationParameters struct {
	Prompt           string            `json:"prompt"`
	NegativePrompt   *string           `json:"negative_prompt,omitempty"`
	Steps            *int              `json:"steps,omitempty"`
	SamplerIndex     *string           `json:"sampler_index,omitempty"`
	CFGScale         *float64          `json:"cfg_scale,omitempty"`
	Seed             *int64            `json:"seed,omitempty"`
	Width            *int              `json:"width,omitempty"`
	Height           *int              `json:"height,omitempty"`
	OverrideSettings *OverrideSettings `json:"override_settings,omitempty"`
}

// IsEmpty reports whether no field was decoded.
func (p GenerationParameters) IsEmpty() bool {
	return p == GenerationParameters{}
}

// ParseParameters decodes the parameters text written by diffusion
// front-ends, e.g.
//
//	a cat, sitting
//	Negative prompt: blurry
//	Steps: 20, Sampler: Euler, CFG scale: 7.5, Seed: 42, Size: 512x768, Model hash: abc123
//
// The prompt is everything before the first marker and is not trimmed.
// Text without a "Steps:" marker has no settings line: the text before the
// negative prompt marker (or all of it) is the prompt. Unknown setting keys
// are dropped, and a setting whose value does not parse is left unset.
func ParseParameters(text string) GenerationParameters {
	if text == "" {
		return GenerationParameters{}
	}

	neg := strings.Index(text, NegativePromptMarker)
	steps := strings.Index(text, StepsMarker)

	if steps < 0 {
		if neg < 0 {
			return GenerationParameters{Prompt: text}
		}
		return GenerationParameters{
			Prompt:         text[:neg],
			NegativePrompt: lo.ToPtr(strings.TrimSpace(text[neg+len(NegativePromptMarker):])),
		}
	}

	// a negative marker after the settings line belongs to some setting value
	if neg > steps {
		neg = -1
	}

	var p GenerationParameters
	if neg >= 0 {
		p.Prompt = text[:neg]
		p.NegativePrompt = lo.ToPtr(strings.TrimSpace(text[neg+len(NegativePromptMarker) : steps]))
	} else {
		p.Prompt = text[:steps]
	}

	for _, pair := range strings.Split(text[steps:], ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		p.set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return p
}

// set maps one "Key: value" setting onto its typed field.
func (p *GenerationParameters) set(key, value string) {
	switch key {
	case "Steps":
		if n, err := strconv.Atoi(value); err == nil {
			p.Steps = &n
		}
	case "Seed":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.Seed = &n
		}
	case "CFG scale":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			p.CFGScale = &f
		}
	case "Sampler":
		p.SamplerIndex = lo.ToPtr(value)
	case "Size":
		w, h, _ := strings.Cut(value, "x")
		if n, err := strconv.Atoi(strings.TrimSpace(w)); err == nil {
			p.Width = &n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(h)); err == nil {
			p.Height = &n
		}
	case "Model hash":
		p.OverrideSettings = &OverrideSettings{SDModelCheckpoint: value}
	}
}

// AdvanceOptions flattens the parameters into the request-option shape the
// SD-style backends accept, so a decoded image can seed a new request.
// Unset fields are omitted.
func (p GenerationParameters) AdvanceOptions() map[string]any {
	out := map[string]any{}
	if p.Prompt != "" {
		out["prompt"] = p.Prompt
	}
	if p.NegativePrompt != nil {
		out["negative_prompt"] = *p.NegativePrompt
	}
	if p.Steps != nil {
		out["steps"] = *p.Steps
	}
	if p.SamplerIndex != nil {
		out["sampler_index"] = *p.SamplerIndex
	}
	if p.CFGScale != nil {
		out["cfg_scale"] = *p.CFGScale
	}
	if p.Seed != nil {
		out["seed"] = *p.Seed
	}
	if p.Width != nil {
		out["width"] = *p.Width
	}
	if p.Height != nil {
		out["height"] = *p.Height
	}
	if p.OverrideSettings != nil {
		out["override_settings"] = map[string]any{
			"sd_model_checkpoint": p.OverrideSettings.SDModelCheckpoint,
		}
	}
	return out
}
