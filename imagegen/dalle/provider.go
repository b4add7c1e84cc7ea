// Package dalle implements imagegen.ImageProvider on the hosted OpenAI
// Images API (DALL-E), including Azure OpenAI deployments.
//
// txt2img maps to image generation; img2img and upscale map to image edits,
// with the input fitted to the requested square PNG first.
package dalle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"spellforge/core"
	"spellforge/imagegen"
	"spellforge/logging"
)

// DefaultBaseURL is the hosted API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// upscalePrompt is sent when an upscale request carries no prompt; edits
// require one.
const upscalePrompt = "the same image in higher resolution"

// Supported square sizes, smallest first.
var squareSizes = []int{256, 512, 1024}

// Provider generates images with DALL-E.
//
// Provider is safe for concurrent use.
type Provider struct {
	client *openai.Client
	images *imagegen.Downloader
	model  string
	log    *logging.Logger
}

// Config holds settings specific to the DALL-E provider.
type Config struct {
	// APIKey is the OpenAI (or Azure) API key (required)
	APIKey string

	// BaseURL is the API endpoint (default: https://api.openai.com/v1)
	BaseURL string

	// Model is the image model, or the deployment name on Azure
	// (default: dall-e-2)
	Model string

	// HTTPClient is used for API calls; nil uses the client library default.
	HTTPClient *http.Client
}

// New creates a provider from the OPENAI_* settings in cfg.
func New(cfg *core.Config, logger *logging.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dalle: config cannot be nil")
	}
	return NewWithConfig(Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIImageModel,
		HTTPClient: core.GetDefaultHTTPClient(cfg),
	}, logger)
}

// NewWithConfig creates a provider with explicit settings.
//
// Example:
//
//	p, err := dalle.NewWithConfig(dalle.Config{APIKey: key}, logger)
//	if err != nil {
//	    return err
//	}
//	res, err := p.Txt2Img(ctx, imagegen.Txt2ImgRequest{Prompt: "a lighthouse"}, imagegen.Options{})
func NewWithConfig(pc Config, logger *logging.Logger) (*Provider, error) {
	if pc.APIKey == "" {
		return nil, fmt.Errorf("dalle: %w", core.ErrMissingAuth("openai"))
	}

	endpoint := pc.BaseURL
	if endpoint == "" {
		endpoint = DefaultBaseURL
	}
	model := pc.Model
	if model == "" {
		model = core.DefaultImageModel
	}
	log := logging.OrNop(logger).Named("dalle")

	var clientConfig openai.ClientConfig
	if imagegen.IsAzureEndpoint(endpoint) {
		clientConfig = openai.DefaultAzureConfig(pc.APIKey, endpoint)
	} else {
		clientConfig = openai.DefaultConfig(pc.APIKey)
		clientConfig.BaseURL = endpoint
		if !imagegen.IsOpenAIEndpoint(endpoint) {
			log.Debug("using OpenAI-compatible endpoint", zap.String("endpoint", endpoint))
		}
	}
	if pc.HTTPClient != nil {
		clientConfig.HTTPClient = pc.HTTPClient
	}

	images, err := imagegen.NewDownloaderWithConfig(imagegen.DownloaderConfig{
		HTTPClient: pc.HTTPClient,
		Timeout:    imagegen.DefaultDownloaderConfig().Timeout,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("dalle: %w", err)
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		images: images,
		model:  model,
		log:    log,
	}, nil
}

// ID implements imagegen.ImageProvider.
func (p *Provider) ID() imagegen.ProviderID {
	return imagegen.DallE
}

// Model returns the configured image model name.
func (p *Provider) Model() string {
	return p.model
}

// Txt2Img implements imagegen.ImageProvider.
func (p *Provider) Txt2Img(ctx context.Context, req imagegen.Txt2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	return imagegen.RunWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (*imagegen.Result, error) {
		resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         req.Prompt,
			Model:          p.model,
			N:              req.N,
			Size:           req.Size,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			return nil, fmt.Errorf("dalle: image generation failed: %w", err)
		}
		opts.Report(1, "")
		return p.result(ctx, resp, req.Size)
	})
}

// Img2Img implements imagegen.ImageProvider. The image (and mask) are fitted
// to the requested square size with req.Resize.
func (p *Provider) Img2Img(ctx context.Context, req imagegen.Img2ImgRequest, opts imagegen.Options) (*imagegen.Result, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: dalle edits need a prompt", imagegen.ErrInvalidRequest)
	}
	width, height, err := imagegen.ParseSize(req.Size)
	if err != nil {
		return nil, err
	}
	if width != height {
		return nil, fmt.Errorf("%w: dalle edits need a square size, got %s", imagegen.ErrInvalidRequest, req.Size)
	}
	opts = opts.WithDefaults()

	image, err := fittedTempFile(req.Image, width, req.Resize)
	if err != nil {
		return nil, err
	}
	defer removeTemp(image)

	edit := openai.ImageEditRequest{
		Image:          image,
		Prompt:         req.Prompt,
		Model:          p.model,
		N:              req.N,
		Size:           req.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if req.Mask != "" {
		mask, err := fittedTempFile(req.Mask, width, req.Resize)
		if err != nil {
			return nil, err
		}
		defer removeTemp(mask)
		edit.Mask = mask
	}

	return imagegen.RunWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (*imagegen.Result, error) {
		resp, err := p.client.CreateEditImage(ctx, edit)
		if err != nil {
			return nil, fmt.Errorf("dalle: image edit failed: %w", err)
		}
		opts.Report(1, "")
		return p.result(ctx, resp, req.Size)
	})
}

// Upscale implements imagegen.ImageProvider as an edit at a larger square
// size. Without an explicit size, the smallest supported square covering
// the scaled input is used.
func (p *Provider) Upscale(ctx context.Context, req imagegen.UpscaleRequest, opts imagegen.Options) (*imagegen.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	edit := req.AsImg2Img()
	if edit.Size == "" {
		size, err := upscaleSize(req.Image, req.Scale)
		if err != nil {
			return nil, err
		}
		edit.Size = size
	}
	if edit.Prompt == "" {
		edit.Prompt = upscalePrompt
	}
	// The edits endpoint rejects unknown fields.
	edit.AdvanceOptions = nil
	return p.Img2Img(ctx, edit, opts)
}

// Infos implements imagegen.ImageProvider; the hosted API lists nothing.
func (p *Provider) Infos(ctx context.Context) (imagegen.Infos, error) {
	return imagegen.Infos{}, nil
}

// result converts the response to data URLs. Hosted URLs, returned when a
// proxy ignores response_format, are downloaded.
func (p *Provider) result(ctx context.Context, resp openai.ImageResponse, size string) (*imagegen.Result, error) {
	if len(resp.Data) == 0 {
		return nil, imagegen.ErrNoImages
	}

	images := make([]string, 0, len(resp.Data))
	var revised string
	for _, d := range resp.Data {
		switch {
		case d.B64JSON != "":
			images = append(images, imagegen.Base64ToDataURL(d.B64JSON, "image/png"))
		case d.URL != "":
			dataURL, err := p.images.DownloadDataURL(ctx, d.URL)
			if err != nil {
				return nil, fmt.Errorf("dalle: fetch image: %w", err)
			}
			images = append(images, dataURL)
		}
		if revised == "" {
			revised = d.RevisedPrompt
		}
	}
	if len(images) == 0 {
		return nil, imagegen.ErrNoImages
	}

	params := map[string]any{"model": p.model, "size": size, "n": len(images)}
	if revised != "" {
		params["revised_prompt"] = revised
	}
	return &imagegen.Result{Images: images, Parameters: params}, nil
}

// upscaleSize picks the smallest supported square at least scale times the
// input's longer side, capped at the largest.
func upscaleSize(dataURL string, scale float64) (string, error) {
	if scale <= 0 {
		scale = 2
	}
	_, data, err := imagegen.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	img, err := imagegen.DecodeImage(data)
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	target := int(float64(max(b.Dx(), b.Dy())) * scale)

	side := squareSizes[len(squareSizes)-1]
	for _, s := range squareSizes {
		if s >= target {
			side = s
			break
		}
	}
	return imagegen.FormatSize(side, side), nil
}

// fittedTempFile writes the fitted PNG to a temp file, rewound for upload.
func fittedTempFile(dataURL string, side int, mode imagegen.ResizeMode) (*os.File, error) {
	_, data, err := imagegen.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	fitted, err := imagegen.FitImage(data, side, side, mode)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "spellforge-*.png")
	if err != nil {
		return nil, fmt.Errorf("dalle: create temp image: %w", err)
	}
	if _, err := f.Write(fitted); err != nil {
		removeTemp(f)
		return nil, fmt.Errorf("dalle: write temp image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		removeTemp(f)
		return nil, fmt.Errorf("dalle: rewind temp image: %w", err)
	}
	return f, nil
}

func removeTemp(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}

var _ imagegen.ImageProvider = (*Provider)(nil)
