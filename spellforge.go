// Package spellforge selects an image generation backend from configuration
// and exposes it behind one Client.
//
// Example:
//
//	cfg, err := core.LoadConfig()
//	if err != nil {
//		return err
//	}
//	client, err := spellforge.New(cfg, logger)
//	if err != nil {
//		return err
//	}
//	res, err := client.Txt2Img(ctx, imagegen.Txt2ImgRequest{Prompt: "a lighthouse at dusk"}, imagegen.Options{})
package spellforge

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"spellforge/core"
	"spellforge/imagegen"
	"spellforge/imagegen/dalle"
	"spellforge/imagegen/gateway"
	"spellforge/imagegen/sdapi"
	"spellforge/logging"
	"spellforge/metrics"
)

// Factory builds a provider from configuration.
type Factory func(cfg *core.Config, logger *logging.Logger) (imagegen.ImageProvider, error)

var (
	registryMu sync.RWMutex
	registry   = map[imagegen.ProviderID]Factory{}
)

func init() {
	Register(imagegen.DallE, func(cfg *core.Config, logger *logging.Logger) (imagegen.ImageProvider, error) {
		return dalle.New(cfg, logger)
	})
	Register(imagegen.SDAPIV1, func(cfg *core.Config, logger *logging.Logger) (imagegen.ImageProvider, error) {
		return sdapi.New(cfg, logger)
	})
	Register(imagegen.Spellforge, func(cfg *core.Config, logger *logging.Logger) (imagegen.ImageProvider, error) {
		return gateway.New(cfg, logger)
	})
}

// Register makes a provider available to New under id, replacing any
// previous factory for the same id. It panics if f is nil.
func Register(id imagegen.ProviderID, f Factory) {
	if f == nil {
		panic("spellforge: Register factory is nil for " + string(id))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = f
}

// Providers returns the registered provider ids in sorted order.
func Providers() []imagegen.ProviderID {
	registryMu.RLock()
	ids := lo.Keys(registry)
	registryMu.RUnlock()

	slices.Sort(ids)
	return ids
}

func lookup(id imagegen.ProviderID) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[id]
	return f, ok
}

// Option configures New.
type Option func(*clientOptions)

type clientOptions struct {
	recorders []metrics.Recorder
	defaults  imagegen.Options
}

// WithMetrics reports every call to the given recorders, typically a
// *metrics.Collector and/or a *metrics.Store.
func WithMetrics(recorders ...metrics.Recorder) Option {
	return func(o *clientOptions) {
		o.recorders = append(o.recorders, recorders...)
	}
}

// WithOptions overrides the call defaults taken from the configuration.
// Zero fields keep the configured values.
func WithOptions(opts imagegen.Options) Option {
	return func(o *clientOptions) {
		o.defaults = opts.Merge(o.defaults)
	}
}

// Client forwards calls to the configured provider with default options
// applied.
//
// Client is safe for concurrent use.
type Client struct {
	provider imagegen.ImageProvider
	defaults imagegen.Options
	log      *logging.Logger
}

// New creates a Client for cfg.Provider.
func New(cfg *core.Config, logger *logging.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("spellforge: config cannot be nil")
	}
	log := logging.OrNop(logger)

	id := imagegen.ProviderID(cfg.Provider)
	factory, ok := lookup(id)
	if !ok {
		available := lo.Map(Providers(), func(p imagegen.ProviderID, _ int) string { return string(p) })
		return nil, fmt.Errorf("spellforge: %w (registered: %s)", core.ErrUnknownProvider(cfg.Provider), strings.Join(available, ", "))
	}

	if err := core.NewConfigValidator(cfg).ValidateRequired(); err != nil {
		return nil, fmt.Errorf("spellforge: %w", err)
	}

	o := clientOptions{defaults: imagegen.OptionsFromConfig(cfg)}
	for _, opt := range opts {
		opt(&o)
	}

	provider, err := factory(cfg, log)
	if err != nil {
		return nil, err
	}
	if len(o.recorders) > 0 {
		provider = metrics.Instrument(provider, o.recorders...)
	}

	log.Info("image provider ready",
		zap.String("provider", string(id)),
		zap.Duration("timeout", o.defaults.Timeout),
		zap.Duration("interval", o.defaults.Interval),
	)

	return &Client{provider: provider, defaults: o.defaults, log: log}, nil
}

// NewWithProvider wraps an already constructed provider.
func NewWithProvider(p imagegen.ImageProvider, defaults imagegen.Options, logger *logging.Logger) *Client {
	return &Client{provider: p, defaults: defaults.WithDefaults(), log: logging.OrNop(logger)}
}

// ID returns the backend identifier.
func (c *Client) ID() imagegen.ProviderID {
	return c.provider.ID()
}

// Provider returns the underlying provider.
func (c *Client) Provider() imagegen.ImageProvider {
	return c.provider
}

// Defaults returns the options merged into every call.
func (c *Client) Defaults() imagegen.Options {
	return c.defaults
}

// Txt2Img generates images from a prompt.
func (c *Client) Txt2Img(ctx context.Context, req imagegen.Txt2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	return c.provider.Txt2Img(ctx, req, opts.Merge(c.defaults))
}

// Img2Img generates images from an input image.
func (c *Client) Img2Img(ctx context.Context, req imagegen.Img2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	return c.provider.Img2Img(ctx, req, opts.Merge(c.defaults))
}

// Upscale enlarges an image.
func (c *Client) Upscale(ctx context.Context, req imagegen.UpscaleRequest, opts imagegen.Options) (*imagegen.Result, error) {
	return c.provider.Upscale(ctx, req, opts.Merge(c.defaults))
}

// Infos lists the backend's capabilities.
func (c *Client) Infos(ctx context.Context) (imagegen.Infos, error) {
	return c.provider.Infos(ctx)
}
