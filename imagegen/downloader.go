package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spellforge/core"
)

// Downloader fetches generated images (hosted URLs, gateway IPFS objects)
// and saves data URLs to the downloads directory.
//
// Downloader is safe for concurrent use.
type Downloader struct {
	client       *http.Client
	downloadsDir string
	requestHook  func(*http.Request)
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is used for downloads; nil builds one from Timeout.
	HTTPClient *http.Client

	// DownloadsDir receives saved images. Default: "downloads"
	DownloadsDir string

	// Timeout for download operations. Default: 60 seconds
	Timeout time.Duration

	// RequestHook, when set, runs on every outgoing request, e.g. to add
	// gateway credentials.
	RequestHook func(*http.Request)
}

// DefaultDownloaderConfig returns sensible defaults for downloading images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		DownloadsDir: core.DefaultDownloadsDir,
		Timeout:      60 * time.Second,
	}
}

// NewDownloader creates a downloader using the HTTP/TLS settings and the
// downloads directory from cfg.
//
// Example:
//
//	downloader, err := NewDownloader(cfg)
//	if err != nil {
//	    return err
//	}
//	saved, err := downloader.SaveDataURL(result.Images[0], "txt2img-1")
func NewDownloader(cfg *core.Config) (*Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewDownloaderWithConfig(DownloaderConfig{
		HTTPClient:   core.GetDefaultHTTPClient(cfg),
		DownloadsDir: cfg.DownloadsDir,
	}, cfg)
}

// NewDownloaderWithConfig creates a downloader with explicit configuration.
// coreCfg is optional and only consulted when cfg.HTTPClient is nil.
func NewDownloaderWithConfig(cfg DownloaderConfig, coreCfg *core.Config) (*Downloader, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if coreCfg != nil {
			httpClient = core.GetDefaultHTTPClient(coreCfg)
		} else {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
	}

	downloadsDir := cfg.DownloadsDir
	if downloadsDir == "" {
		downloadsDir = core.DefaultDownloadsDir
	}

	return &Downloader{
		client:       httpClient,
		downloadsDir: downloadsDir,
		requestHook:  cfg.RequestHook,
	}, nil
}

// DownloadResult describes a saved image.
type DownloadResult struct {
	// Path is the local file path of the image
	Path string

	// Size is the size of the image in bytes
	Size int64

	// ContentType is the MIME type of the image (if available)
	ContentType string
}

// Download fetches url and saves the body under filename (the extension is
// derived from Content-Type). The caller owns the file.
func (d *Downloader) Download(ctx context.Context, url string, filename string) (*DownloadResult, error) {
	if url == "" {
		return nil, fmt.Errorf("imagegen: URL cannot be empty")
	}
	if filename == "" {
		return nil, fmt.Errorf("imagegen: filename cannot be empty")
	}

	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".png"
	}
	fullPath, err := d.path(filename, ext)
	if err != nil {
		return nil, err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create image file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("imagegen: failed to write image data: %w", err)
	}

	return &DownloadResult{
		Path:        fullPath,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// DownloadBytes fetches url and returns the body and its Content-Type.
func (d *Downloader) DownloadBytes(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("imagegen: URL cannot be empty")
	}

	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// DownloadDataURL fetches url and returns it as a data URL. The MIME type
// comes from Content-Type, or is sniffed when the server sends none or a
// generic one.
func (d *Downloader) DownloadDataURL(ctx context.Context, url string) (string, error) {
	data, contentType, err := d.DownloadBytes(ctx, url)
	if err != nil {
		return "", err
	}
	mime := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if !strings.HasPrefix(mime, "image/") {
		mime = sniffMIME(data)
	}
	return EncodeDataURL(mime, data), nil
}

// SaveDataURL decodes dataURL and writes it under filename in the downloads
// directory.
func (d *Downloader) SaveDataURL(dataURL string, filename string) (*DownloadResult, error) {
	if filename == "" {
		return nil, fmt.Errorf("imagegen: filename cannot be empty")
	}
	mime, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	ext := extensionFromContentType(mime)
	if ext == "" {
		ext = ".png"
	}
	fullPath, err := d.path(filename, ext)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return nil, fmt.Errorf("imagegen: failed to write image file: %w", err)
	}

	return &DownloadResult{
		Path:        fullPath,
		Size:        int64(len(data)),
		ContentType: mime,
	}, nil
}

// DownloadsDir returns the configured downloads directory.
func (d *Downloader) DownloadsDir() string {
	return d.downloadsDir
}

// path creates the downloads directory on first use and returns the file
// path for filename.
func (d *Downloader) path(filename, ext string) (string, error) {
	if err := os.MkdirAll(d.downloadsDir, 0755); err != nil {
		return "", fmt.Errorf("imagegen: failed to create downloads directory: %w", err)
	}
	return filepath.Join(d.downloadsDir, sanitizeFilename(filename)+ext), nil
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create download request: %w", err)
	}
	if d.requestHook != nil {
		d.requestHook(req)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}
	return resp, nil
}

// extensionFromContentType returns the file extension for a given Content-Type.
func extensionFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}

	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}
	lower = strings.TrimSpace(lower)

	switch lower {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		if strings.HasPrefix(lower, "image/") {
			return ".png"
		}
		return ""
	}
}

// sanitizeFilename removes or replaces characters that are unsafe for filenames.
func sanitizeFilename(filename string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := filename
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}

	if len(result) > 200 {
		result = result[:200]
	}
	if result == "" {
		result = "image"
	}
	return result
}
