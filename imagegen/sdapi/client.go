// Package sdapi implements imagegen.ImageProvider on a stable-diffusion-webui
// instance through its /sdapi/v1 REST API.
//
// Generation calls run under the caller's timeout. When a progress callback
// is set, a poller reads /sdapi/v1/progress beside the running call and
// reports percent and preview until the call returns.
package sdapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spellforge/core"
	"spellforge/imagegen"
	"spellforge/logging"
	"spellforge/poll"
)

// DefaultInterrogateModel is the caption model used when none is given.
const DefaultInterrogateModel = "clip"

// Client talks to one webui instance.
//
// Client is safe for concurrent use.
type Client struct {
	host     string
	http     *http.Client
	username string
	password string
	log      *logging.Logger
}

// Config holds settings specific to the webui provider.
type Config struct {
	// Host is the service root (default: http://localhost:7860)
	Host string

	// Username and Password enable HTTP basic auth (--api-auth) when both set.
	Username string
	Password string

	// HTTPClient is used for API calls; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// New creates a client from the SDAPI_* settings in cfg.
func New(cfg *core.Config, logger *logging.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sdapi: config cannot be nil")
	}
	return NewWithConfig(Config{
		Host:       cfg.SDAPIHost,
		Username:   cfg.SDAPIUsername,
		Password:   cfg.SDAPIPassword,
		HTTPClient: core.GetDefaultHTTPClient(cfg),
	}, logger)
}

// NewWithConfig creates a client with explicit settings.
func NewWithConfig(sc Config, logger *logging.Logger) (*Client, error) {
	host := strings.TrimRight(sc.Host, "/")
	if host == "" {
		host = core.DefaultSDAPIHost
	}
	if err := core.ValidateURL(host); err != nil {
		return nil, fmt.Errorf("sdapi: %w", core.ErrInvalidURL("SDAPI_HOST", host, err.Error()))
	}
	if (sc.Username == "") != (sc.Password == "") {
		return nil, fmt.Errorf("sdapi: %w", core.ErrMissingAuth("sdapi"))
	}

	httpClient := sc.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	log := logging.OrNop(logger).Named("sdapi")
	if imagegen.IsLocalEndpoint(host) {
		log.Warn("using a stable-diffusion-webui on the local network; make sure it is running and started with --api",
			zap.String("host", host))
	}

	return &Client{
		host:     host,
		http:     httpClient,
		username: sc.Username,
		password: sc.Password,
		log:      log,
	}, nil
}

// ID implements imagegen.ImageProvider.
func (c *Client) ID() imagegen.ProviderID {
	return imagegen.SDAPIV1
}

// Host returns the service root.
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
	return c.generate(ctx, pathTxt2Img, params, opts)
}

// Img2Img implements imagegen.ImageProvider.
func (c *Client) Img2Img(ctx context.Context, req imagegen.Img2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.generate(ctx, pathImg2Img, imagegen.SDParams(req), opts)
}

// Upscale implements imagegen.ImageProvider with extra-single-image. A size
// selects resize-to-dimensions; otherwise Scale (default 2) is the factor.
func (c *Client) Upscale(ctx context.Context, req imagegen.UpscaleRequest, opts imagegen.Options) (*imagegen.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	body := map[string]any{"image": req.Image}
	if req.Size != "" {
		width, height, _ := imagegen.ParseSize(req.Size)
		body["resize_mode"] = 1
		body["upscaling_resize_w"] = width
		body["upscaling_resize_h"] = height
	} else {
		scale := req.Scale
		if scale <= 0 {
			scale = 2
		}
		body["resize_mode"] = 0
		body["upscaling_resize"] = scale
	}
	if req.Upscaler != "" {
		body["upscaler_1"] = req.Upscaler
	}
	for k, v := range req.AdvanceOptions {
		body[k] = v
	}

	return c.task(ctx, opts, func(ctx context.Context) (*imagegen.Result, error) {
		var resp extraSingleResponse
		if err := c.do(ctx, http.MethodPost, pathExtraSingle, body, &resp); err != nil {
			return nil, err
		}
		if resp.Image == "" {
			return nil, imagegen.ErrNoImages
		}
		return &imagegen.Result{
			Images: []string{imagegen.Base64ToDataURL(resp.Image, "image/png")},
			Info:   resp.HTMLInfo,
		}, nil
	})
}

func (c *Client) generate(ctx context.Context, path string, params map[string]any, opts imagegen.Options) (*imagegen.Result, error) {
	opts = opts.WithDefaults()
	return c.task(ctx, opts, func(ctx context.Context) (*imagegen.Result, error) {
		var resp generationResponse
		if err := c.do(ctx, http.MethodPost, path, params, &resp); err != nil {
			return nil, err
		}
		if len(resp.Images) == 0 {
			return nil, imagegen.ErrNoImages
		}
		images := make([]string, len(resp.Images))
		for i, img := range resp.Images {
			images[i] = imagegen.Base64ToDataURL(img, "image/png")
		}
		return &imagegen.Result{Images: images, Parameters: resp.Parameters, Info: resp.Info}, nil
	})
}

// task runs call under opts.Timeout with a progress reporter beside it.
// The reporter is stopped before task returns, so no callback runs after.
func (c *Client) task(ctx context.Context, opts imagegen.Options, call func(ctx context.Context) (*imagegen.Result, error)) (*imagegen.Result, error) {
	return imagegen.RunWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (*imagegen.Result, error) {
		if opts.OnProgress == nil {
			return call(ctx)
		}

		watchCtx, stop := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.watchProgress(watchCtx, opts)
		}()

		res, err := call(ctx)
		stop()
		wg.Wait()
		return res, err
	})
}

// watchProgress reports progress every interval until ctx ends. Probe
// failures are logged and skipped.
func (c *Client) watchProgress(ctx context.Context, opts imagegen.Options) {
	probe := func(ctx context.Context) (struct{}, bool, error) {
		p, err := c.Progress(ctx, true)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Debug("progress probe failed", zap.Error(err))
			}
			return struct{}{}, false, nil
		}
		if ctx.Err() != nil {
			return struct{}{}, false, nil
		}
		preview := ""
		if p.CurrentImage != "" {
			preview = imagegen.Base64ToDataURL(p.CurrentImage, "image/png")
		}
		opts.Report(p.Progress, preview)
		return struct{}{}, false, nil
	}
	poll.WaitUntil(ctx, probe, poll.Options{Interval: opts.Interval})
}

// Progress returns the state of the running job. With preview set the
// current preview image is included.
func (c *Client) Progress(ctx context.Context, preview bool) (*Progress, error) {
	var p Progress
	path := pathProgress + "?skip_current_image=" + strconv.FormatBool(!preview)
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Samplers lists the available samplers.
func (c *Client) Samplers(ctx context.Context) ([]Sampler, error) {
	var out []Sampler
	return out, c.do(ctx, http.MethodGet, pathSamplers, nil, &out)
}

// Upscalers lists the available upscalers.
func (c *Client) Upscalers(ctx context.Context) ([]Upscaler, error) {
	var out []Upscaler
	return out, c.do(ctx, http.MethodGet, pathUpscalers, nil, &out)
}

// SDModels lists the installed checkpoints.
func (c *Client) SDModels(ctx context.Context) ([]SDModel, error) {
	var out []SDModel
	return out, c.do(ctx, http.MethodGet, pathSDModels, nil, &out)
}

// Embeddings lists textual inversion embeddings.
func (c *Client) Embeddings(ctx context.Context) (*Embeddings, error) {
	var out Embeddings
	if err := c.do(ctx, http.MethodGet, pathEmbeddings, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Interrogate captions an image (data URL) with model, "clip" by default.
func (c *Client) Interrogate(ctx context.Context, image, model string) (string, error) {
	if image == "" {
		return "", fmt.Errorf("%w: image is required", imagegen.ErrInvalidRequest)
	}
	if model == "" {
		model = DefaultInterrogateModel
	}
	var out interrogateResponse
	if err := c.do(ctx, http.MethodPost, pathInterrogate, interrogateRequest{Image: image, Model: model}, &out); err != nil {
		return "", err
	}
	return out.Caption, nil
}

// Infos implements imagegen.ImageProvider. The four listings are fetched
// concurrently; the first failure cancels the rest.
func (c *Client) Infos(ctx context.Context) (imagegen.Infos, error) {
	var (
		samplers   []Sampler
		upscalers  []Upscaler
		models     []SDModel
		embeddings *Embeddings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { samplers, err = c.Samplers(gctx); return })
	g.Go(func() (err error) { upscalers, err = c.Upscalers(gctx); return })
	g.Go(func() (err error) { models, err = c.SDModels(gctx); return })
	g.Go(func() (err error) { embeddings, err = c.Embeddings(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return imagegen.Infos{
		"samplers":   samplers,
		"upscalers":  upscalers,
		"sdmodels":   models,
		"embeddings": embeddings,
	}, nil
}

// do sends a JSON request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("sdapi: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return fmt.Errorf("sdapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sdapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := imagegen.CheckResponse(imagegen.SDAPIV1, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sdapi: decode %s response: %w", path, err)
	}
	return nil
}

var _ imagegen.ImageProvider = (*Client)(nil)
