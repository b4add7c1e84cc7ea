// Package gateway implements imagegen.ImageProvider on the Spellforge SaaS
// gateway.
//
// A call submits a job to /api/aigc and polls /api/aigc/{id}/result until
// the job reports full progress. Preview and result images are IPFS CIDs,
// fetched from /api/ipfs/{cid} and returned as data URLs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spellforge/core"
	"spellforge/imagegen"
	"spellforge/logging"
	"spellforge/poll"
)

// ErrJobFailed is returned when the gateway reports a failed job.
var ErrJobFailed = errors.New("gateway: job failed")

// submitMode asks the gateway to pass params through to the backend as-is.
const submitMode = "pass"

// Client talks to the gateway.
//
// Client is safe for concurrent use.
type Client struct {
	host       string
	apiKey     string
	credential string
	http       *http.Client
	images     *imagegen.Downloader
	log        *logging.Logger
}

// Config holds settings specific to the gateway provider.
type Config struct {
	// Host is the gateway root (default: https://spellforge.ai)
	Host string

	// APIKey identifies the application (required)
	APIKey string

	// Credential is the signed-in user's bearer token (required)
	Credential string

	// HTTPClient is used for API calls; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// New creates a client from the SPELLFORGE_* settings in cfg.
func New(cfg *core.Config, logger *logging.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gateway: config cannot be nil")
	}
	return NewWithConfig(Config{
		Host:       cfg.SpellforgeHost,
		APIKey:     cfg.SpellforgeAPIKey,
		Credential: cfg.SpellforgeCredential,
		HTTPClient: core.GetDefaultHTTPClient(cfg),
	}, logger)
}

// NewWithConfig creates a client with explicit settings.
func NewWithConfig(gc Config, logger *logging.Logger) (*Client, error) {
	if gc.APIKey == "" || gc.Credential == "" {
		return nil, fmt.Errorf("gateway: %w", core.ErrMissingAuth("spellforge"))
	}
	host := strings.TrimRight(gc.Host, "/")
	if host == "" {
		host = core.DefaultSpellforgeHost
	}
	if err := core.ValidateURL(host); err != nil {
		return nil, fmt.Errorf("gateway: %w", core.ErrInvalidURL("SPELLFORGE_HOST", host, err.Error()))
	}

	httpClient := gc.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		host:       host,
		apiKey:     gc.APIKey,
		credential: gc.Credential,
		http:       httpClient,
		log:        logging.OrNop(logger).Named("gateway"),
	}
	images, err := imagegen.NewDownloaderWithConfig(imagegen.DownloaderConfig{
		HTTPClient:  httpClient,
		RequestHook: c.authorize,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	c.images = images
	return c, nil
}

// ID implements imagegen.ImageProvider.
func (c *Client) ID() imagegen.ProviderID {
	return imagegen.Spellforge
}

// Host returns the gateway root.
func (c *Client) Host() string {
	return c.host
}

// Txt2Img implements imagegen.ImageProvider.
func (c *Client) Txt2Img(ctx context.Context, req imagegen.Txt2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	params := imagegen.SDParams(imagegen.Img2ImgRequest{Txt2ImgRequest: req})
	return c.run(ctx, apiTxt2Img, params, req.Requirements, opts)
}

// Img2Img implements imagegen.ImageProvider.
func (c *Client) Img2Img(ctx context.Context, req imagegen.Img2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.run(ctx, apiImg2Img, imagegen.SDParams(req), req.Requirements, opts)
}

// Upscale implements imagegen.ImageProvider. The gateway has no dedicated
// upscale API; the job runs as img2img with the scale and upscaler carried
// as upscaling_resize and upscaler_1.
func (c *Client) Upscale(ctx context.Context, req imagegen.UpscaleRequest, opts imagegen.Options) (*imagegen.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	edit := req.AsImg2Img()
	return c.run(ctx, apiImg2Img, imagegen.SDParams(edit), nil, opts)
}

// run submits a job and waits for its images under opts.Timeout.
func (c *Client) run(ctx context.Context, api string, params, requirements map[string]any, opts imagegen.Options) (*imagegen.Result, error) {
	opts = opts.WithDefaults()
	return imagegen.RunWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (*imagegen.Result, error) {
		var state jobState
		body := submitRequest{API: api, Params: params, Mode: submitMode, Requirements: requirements}
		if err := c.do(ctx, http.MethodPost, pathAIGC, body, &state); err != nil {
			return nil, err
		}
		if state.ID == "" && !state.done() {
			return nil, fmt.Errorf("gateway: submission returned no job id")
		}
		c.log.Debug("job submitted", zap.String("job_id", state.ID), zap.String("api", api))

		final := &state
		if !state.done() {
			var err error
			final, err = c.wait(ctx, state.ID, opts)
			if err != nil {
				return nil, err
			}
		}
		return c.collect(ctx, final)
	})
}

// wait polls the job result until it completes. Probe failures are logged
// and treated as not ready.
func (c *Client) wait(ctx context.Context, id string, opts imagegen.Options) (*jobState, error) {
	path := pathAIGC + "/" + url.PathEscape(id) + "/result"
	probe := func(ctx context.Context) (*jobState, bool, error) {
		var state jobState
		if err := c.do(ctx, http.MethodGet, path, nil, &state); err != nil {
			if ctx.Err() == nil {
				c.log.Warn("job result probe failed", zap.String("job_id", id), zap.Error(err))
			}
			return nil, false, nil
		}
		if state.done() {
			return &state, true, nil
		}
		if opts.OnProgress != nil && state.ProgressImage != "" {
			preview, err := c.images.DownloadDataURL(ctx, c.ipfsURL(state.ProgressImage))
			if err != nil {
				c.log.Warn("progress image fetch failed", zap.String("job_id", id), zap.Error(err))
			} else if ctx.Err() == nil {
				opts.Report(state.Progress, preview)
			}
		}
		return nil, false, nil
	}
	return poll.WaitUntil(ctx, probe, opts.Poll())
}

// collect fetches the result images concurrently, keeping their order.
func (c *Client) collect(ctx context.Context, state *jobState) (*imagegen.Result, error) {
	res := state.Result
	if res == nil {
		return &imagegen.Result{}, nil
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, res.Error)
	}

	images := make([]string, len(res.Images))
	g, gctx := errgroup.WithContext(ctx)
	for i, cid := range res.Images {
		g.Go(func() error {
			img, err := c.images.DownloadDataURL(gctx, c.ipfsURL(cid))
			if err != nil {
				return fmt.Errorf("gateway: fetch image %s: %w", cid, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &imagegen.Result{Images: images, Parameters: res.Parameters, Info: res.Info}, nil
}

func (c *Client) ipfsURL(cid string) string {
	return c.host + pathIPFS + url.PathEscape(cid)
}

// Samplers lists the samplers the gateway offers.
func (c *Client) Samplers(ctx context.Context) ([]Sampler, error) {
	var out []Sampler
	return out, c.do(ctx, http.MethodGet, pathSamplers, nil, &out)
}

// Upscalers lists the upscalers the gateway offers.
func (c *Client) Upscalers(ctx context.Context) ([]Upscaler, error) {
	var out []Upscaler
	return out, c.do(ctx, http.MethodGet, pathUpscalers, nil, &out)
}

// SDModels lists the checkpoints the gateway offers.
func (c *Client) SDModels(ctx context.Context) ([]SDModel, error) {
	var out []SDModel
	return out, c.do(ctx, http.MethodGet, pathSDModels, nil, &out)
}

// Embeddings lists the textual inversion embeddings the gateway offers.
func (c *Client) Embeddings(ctx context.Context) (*Embeddings, error) {
	var out Embeddings
	if err := c.do(ctx, http.MethodGet, pathEmbeddings, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Loras lists the LoRA networks the gateway offers.
func (c *Client) Loras(ctx context.Context) ([]Lora, error) {
	var out []Lora
	return out, c.do(ctx, http.MethodGet, pathLoras, nil, &out)
}

// Infos implements imagegen.ImageProvider; listings are fetched concurrently.
func (c *Client) Infos(ctx context.Context) (imagegen.Infos, error) {
	var (
		samplers   []Sampler
		upscalers  []Upscaler
		models     []SDModel
		embeddings *Embeddings
		loras      []Lora
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { samplers, err = c.Samplers(gctx); return })
	g.Go(func() (err error) { upscalers, err = c.Upscalers(gctx); return })
	g.Go(func() (err error) { models, err = c.SDModels(gctx); return })
	g.Go(func() (err error) { embeddings, err = c.Embeddings(gctx); return })
	g.Go(func() (err error) { loras, err = c.Loras(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return imagegen.Infos{
		"samplers":   samplers,
		"upscalers":  upscalers,
		"sdmodels":   models,
		"embeddings": embeddings,
		"loras":      loras,
	}, nil
}

// authorize sets the credential headers and a fresh request id.
func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("ApiKey", c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// do sends a JSON request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := imagegen.CheckResponse(imagegen.Spellforge, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: decode %s response: %w", path, err)
	}
	return nil
}

var _ imagegen.ImageProvider = (*Client)(nil)
