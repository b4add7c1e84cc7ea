// Package imagegen defines the provider-neutral image generation surface:
// request, option and result types, the ImageProvider contract, and the
// helpers every backend shares (parameter mapping, data URLs, downloads,
// image fitting and embedded-parameter access).
//
// types.go contains the request/response atoms.
package imagegen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"spellforge/core"
	"spellforge/poll"
)

// ProviderID identifies a backend.
type ProviderID string

const (
	// DallE is the hosted OpenAI Images API.
	DallE ProviderID = core.ProviderDallE

	// SDAPIV1 is a stable-diffusion-webui instance (/sdapi/v1).
	SDAPIV1 ProviderID = core.ProviderSDAPI

	// Spellforge is the Spellforge SaaS gateway.
	Spellforge ProviderID = core.ProviderSpellforge
)

// Request defaults.
const (
	DefaultSize   = "512x512"
	DefaultPrompt = "a beautiful painting"
	DefaultN      = 1
)

// ResizeMode controls how an input image is fitted to the requested size.
type ResizeMode string

// The order matters: the index is the webui resize_mode value.
const (
	ResizeFill    ResizeMode = "fill"
	ResizeCover   ResizeMode = "cover"
	ResizeContain ResizeMode = "contain"
)

var resizeModes = []ResizeMode{ResizeFill, ResizeCover, ResizeContain}

// Index returns the numeric resize_mode for m, or false for an unknown mode.
func (m ResizeMode) Index() (int, bool) {
	for i, mode := range resizeModes {
		if mode == m {
			return i, true
		}
	}
	return 0, false
}

// Txt2ImgRequest asks for images generated from a prompt.
type Txt2ImgRequest struct {
	Prompt string
	Size   string // "WxH"
	N      int

	// AdvanceOptions are backend-native settings (steps, sampler_index,
	// cfg_scale, seed, ...) merged over the mapped fields.
	AdvanceOptions map[string]any

	// Requirements lists features the request needs from the backend.
	Requirements map[string]any
}

// WithDefaults fills an empty prompt, an empty size and a non-positive N.
func (r Txt2ImgRequest) WithDefaults() Txt2ImgRequest {
	if r.Prompt == "" {
		r.Prompt = DefaultPrompt
	}
	if r.Size == "" {
		r.Size = DefaultSize
	}
	if r.N <= 0 {
		r.N = DefaultN
	}
	return r
}

// Validate checks the request after defaults have been applied.
func (r Txt2ImgRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt cannot be blank", ErrInvalidRequest)
	}
	if r.Size != "" {
		if _, _, err := ParseSize(r.Size); err != nil {
			return err
		}
	}
	if r.N < 0 {
		return fmt.Errorf("%w: n must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Img2ImgRequest asks for images derived from an input image.
type Img2ImgRequest struct {
	Txt2ImgRequest

	Image  string // data URL
	Mask   string // data URL, optional
	Resize ResizeMode
}

// WithDefaults fills size, N and the cover resize mode. The prompt may
// stay empty.
func (r Img2ImgRequest) WithDefaults() Img2ImgRequest {
	prompt := r.Prompt
	r.Txt2ImgRequest = r.Txt2ImgRequest.WithDefaults()
	r.Prompt = prompt
	if r.Resize == "" {
		r.Resize = ResizeCover
	}
	return r
}

// Validate checks the request after defaults have been applied.
func (r Img2ImgRequest) Validate() error {
	if r.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}
	if r.Resize != "" {
		if _, ok := r.Resize.Index(); !ok {
			return fmt.Errorf("%w: unknown resize mode %q", ErrInvalidRequest, r.Resize)
		}
	}
	if r.Size != "" {
		if _, _, err := ParseSize(r.Size); err != nil {
			return err
		}
	}
	if r.N < 0 {
		return fmt.Errorf("%w: n must not be negative", ErrInvalidRequest)
	}
	return nil
}

// UpscaleRequest asks for a larger version of an image.
type UpscaleRequest struct {
	Image    string // data URL
	Prompt   string
	Size     string  // target "WxH"; optional when Scale is set
	Scale    float64 // resize factor, e.g. 2
	Upscaler string  // upscaler name as listed by Infos

	AdvanceOptions map[string]any
}

// Validate checks the request.
func (r UpscaleRequest) Validate() error {
	if r.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}
	if r.Scale < 0 {
		return fmt.Errorf("%w: scale must not be negative", ErrInvalidRequest)
	}
	if r.Size != "" {
		if _, _, err := ParseSize(r.Size); err != nil {
			return err
		}
	}
	return nil
}

// AsImg2Img expresses the upscale as an img2img request, with the scale
// and upscaler carried as advance options under the webui extras names.
func (r UpscaleRequest) AsImg2Img() Img2ImgRequest {
	advance := map[string]any{}
	if r.Scale > 0 {
		advance["upscaling_resize"] = r.Scale
	}
	if r.Upscaler != "" {
		advance["upscaler_1"] = r.Upscaler
	}
	for k, v := range r.AdvanceOptions {
		advance[k] = v
	}
	return Img2ImgRequest{
		Txt2ImgRequest: Txt2ImgRequest{
			Prompt:         r.Prompt,
			Size:           r.Size,
			AdvanceOptions: advance,
		},
		Image: r.Image,
	}
}

// ProgressFunc receives the job progress in percent (0..100) and, when the
// backend provides one, a preview image as a data URL.
type ProgressFunc func(percent int, preview string)

// Options controls how a call waits for its result.
type Options struct {
	Timeout    time.Duration // default 20s
	Interval   time.Duration // default 1s
	OnProgress ProgressFunc
}

// WithDefaults fills zero durations.
func (o Options) WithDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = poll.DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = poll.DefaultInterval
	}
	return o
}

// Merge returns o with zero fields taken from base.
func (o Options) Merge(base Options) Options {
	if o.Timeout <= 0 {
		o.Timeout = base.Timeout
	}
	if o.Interval <= 0 {
		o.Interval = base.Interval
	}
	if o.OnProgress == nil {
		o.OnProgress = base.OnProgress
	}
	return o
}

// Poll converts o to poller options.
func (o Options) Poll() poll.Options {
	return poll.Options{Interval: o.Interval, Timeout: o.Timeout}
}

// OptionsFromConfig returns the configured timeout and interval.
func OptionsFromConfig(cfg *core.Config) Options {
	if cfg == nil {
		return Options{}.WithDefaults()
	}
	return Options{Timeout: cfg.ImageTimeout, Interval: cfg.PollInterval}.WithDefaults()
}

// Result is what every generation call returns.
type Result struct {
	// Images are data URLs, in backend order.
	Images []string

	// Parameters echo the settings the backend used, when it reports them.
	Parameters map[string]any

	// Info is the backend's free-form info string (JSON for the webui).
	Info string
}

// Infos maps a capability name (samplers, upscalers, sdmodels, embeddings,
// loras) to the backend's listing.
type Infos map[string]any

// ParseSize splits "WxH" into positive integers.
func ParseSize(size string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: size %q is not WxH", ErrInvalidRequest, size)
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: size %q is not WxH", ErrInvalidRequest, size)
	}
	return width, height, nil
}

// FormatSize is the inverse of ParseSize.
func FormatSize(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
