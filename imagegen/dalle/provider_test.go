package dalle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"spellforge/core"
	"spellforge/imagegen"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// fakeAPI records requests and answers with one b64 image per call.
type fakeAPI struct {
	mu       sync.Mutex
	paths    []string
	form     map[string]string
	files    map[string][]byte
	body     map[string]any
	status   int
	respBody string
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.paths = append(f.paths, r.URL.Path)

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			f.form = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				f.form[k] = v[0]
			}
			f.files = map[string][]byte{}
			for k, fh := range r.MultipartForm.File {
				file, err := fh[0].Open()
				if err != nil {
					t.Errorf("open form file: %v", err)
					continue
				}
				data, _ := io.ReadAll(file)
				file.Close()
				f.files[k] = data
			}
		} else {
			json.NewDecoder(r.Body).Decode(&f.body)
		}

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
			io.WriteString(w, f.respBody)
			return
		}
		b64 := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
		io.WriteString(w, `{"created":1,"data":[{"b64_json":"`+b64+`","revised_prompt":"a revised cat"}]}`)
	}
}

func newTestProvider(t *testing.T, api *fakeAPI) *Provider {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	p, err := NewWithConfig(Config{APIKey: "sk-test-key", BaseURL: server.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(&core.Config{}, nil)
	cfgErr, ok := core.IsConfigError(err)
	if !ok {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if cfgErr.Code != core.ErrCodeMissingAuth {
		t.Errorf("code = %s", cfgErr.Code)
	}
	if !strings.Contains(err.Error(), "https://platform.openai.com/account/api-keys") {
		t.Errorf("error should point at the key page: %v", err)
	}

	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(&core.Config{OpenAIAPIKey: "sk-test-key"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != core.DefaultImageModel {
		t.Errorf("Model() = %q", p.Model())
	}
	if p.ID() != imagegen.DallE {
		t.Errorf("ID() = %q", p.ID())
	}

	if _, err := NewWithConfig(Config{APIKey: "k", BaseURL: "https://res.openai.azure.com", Model: "dalle"}, nil); err != nil {
		t.Errorf("azure endpoint: %v", err)
	}
}

func TestTxt2Img(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(t, api)

	var percents []int
	res, err := p.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat", N: 1}, imagegen.Options{
		OnProgress: func(percent int, _ string) { percents = append(percents, percent) },
	})
	if err != nil {
		t.Fatalf("Txt2Img: %v", err)
	}

	if len(api.paths) != 1 || api.paths[0] != "/v1/images/generations" {
		t.Errorf("paths = %v", api.paths)
	}
	if api.body["prompt"] != "a cat" || api.body["size"] != "512x512" || api.body["response_format"] != "b64_json" {
		t.Errorf("body = %v", api.body)
	}
	if api.body["model"] != core.DefaultImageModel {
		t.Errorf("model = %v", api.body["model"])
	}

	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	if len(res.Images) != 1 || res.Images[0] != want {
		t.Errorf("Images = %v", res.Images)
	}
	if res.Parameters["revised_prompt"] != "a revised cat" {
		t.Errorf("Parameters = %v", res.Parameters)
	}
	if len(percents) != 1 || percents[0] != 100 {
		t.Errorf("progress = %v, want [100]", percents)
	}
}

func TestTxt2Img_APIError(t *testing.T) {
	api := &fakeAPI{
		status:   http.StatusBadRequest,
		respBody: `{"error":{"message":"bad size","type":"invalid_request_error"}}`,
	}
	p := newTestProvider(t, api)

	_, err := p.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat"}, imagegen.Options{})
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *openai.APIError", err)
	}
	if apiErr.HTTPStatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.HTTPStatusCode)
	}
}

func TestTxt2Img_URLResponseIsDownloaded(t *testing.T) {
	pngData := testPNG(t, 4, 4)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/images/generations":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"created":1,"data":[{"url":"`+server.URL+`/files/img.png"}]}`)
		case "/files/img.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p, err := NewWithConfig(Config{APIKey: "sk-test-key", BaseURL: server.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	res, err := p.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat"}, imagegen.Options{})
	if err != nil {
		t.Fatalf("Txt2Img: %v", err)
	}
	if len(res.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(res.Images))
	}
	mime, data, err := imagegen.DecodeDataURL(res.Images[0])
	if err != nil {
		t.Fatalf("Images[0] = %.40q is not a data URL: %v", res.Images[0], err)
	}
	if mime != "image/png" || !bytes.Equal(data, pngData) {
		t.Errorf("decoded %s with %d bytes, want image/png with %d", mime, len(data), len(pngData))
	}
}

func TestTxt2Img_URLResponseDownloadFails(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/images/generations" {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"created":1,"data":[{"url":"`+server.URL+`/gone.png"}]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	p, err := NewWithConfig(Config{APIKey: "sk-test-key", BaseURL: server.URL + "/v1"}, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	if _, err := p.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat"}, imagegen.Options{}); err == nil {
		t.Error("expected error when the image URL cannot be fetched")
	}
}

func TestTxt2Img_InvalidRequest(t *testing.T) {
	p := newTestProvider(t, &fakeAPI{})
	_, err := p.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "x", Size: "huge"}, imagegen.Options{})
	if !errors.Is(err, imagegen.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestTxt2Img_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	p, err := NewWithConfig(Config{APIKey: "sk-test-key", BaseURL: server.URL + "/v1"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "x"}, imagegen.Options{Timeout: 30 * time.Millisecond})
	if !errors.Is(err, imagegen.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestImg2Img_SendsFittedImage(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(t, api)

	req := imagegen.Img2ImgRequest{
		Txt2ImgRequest: imagegen.Txt2ImgRequest{Prompt: "add a hat", Size: "256x256"},
		Image:          imagegen.EncodeDataURL("image/png", testPNG(t, 40, 20)),
		Mask:           imagegen.EncodeDataURL("image/png", testPNG(t, 40, 20)),
		Resize:         imagegen.ResizeContain,
	}
	res, err := p.Img2Img(context.Background(), req, imagegen.Options{})
	if err != nil {
		t.Fatalf("Img2Img: %v", err)
	}
	if len(res.Images) != 1 {
		t.Errorf("Images = %v", res.Images)
	}

	if len(api.paths) != 1 || api.paths[0] != "/v1/images/edits" {
		t.Errorf("paths = %v", api.paths)
	}
	if api.form["prompt"] != "add a hat" || api.form["size"] != "256x256" {
		t.Errorf("form = %v", api.form)
	}
	for _, field := range []string{"image", "mask"} {
		img, err := png.Decode(bytes.NewReader(api.files[field]))
		if err != nil {
			t.Fatalf("%s is not a PNG: %v", field, err)
		}
		if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
			t.Errorf("%s bounds = %v, want 256x256", field, b)
		}
	}
}

func TestImg2Img_Validation(t *testing.T) {
	p := newTestProvider(t, &fakeAPI{})
	image := imagegen.EncodeDataURL("image/png", testPNG(t, 4, 4))

	tests := []struct {
		name string
		req  imagegen.Img2ImgRequest
	}{
		{"no image", imagegen.Img2ImgRequest{Txt2ImgRequest: imagegen.Txt2ImgRequest{Prompt: "p"}}},
		{"no prompt", imagegen.Img2ImgRequest{Image: image}},
		{"not square", imagegen.Img2ImgRequest{Txt2ImgRequest: imagegen.Txt2ImgRequest{Prompt: "p", Size: "512x256"}, Image: image}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Img2Img(context.Background(), tt.req, imagegen.Options{}); !errors.Is(err, imagegen.ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestUpscale(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(t, api)

	_, err := p.Upscale(context.Background(), imagegen.UpscaleRequest{
		Image: imagegen.EncodeDataURL("image/png", testPNG(t, 200, 100)),
		Scale: 2,
	}, imagegen.Options{})
	if err != nil {
		t.Fatalf("Upscale: %v", err)
	}
	if api.form["size"] != "512x512" {
		t.Errorf("size = %q, want 512x512", api.form["size"])
	}
	if api.form["prompt"] != upscalePrompt {
		t.Errorf("prompt = %q", api.form["prompt"])
	}
}

func TestUpscaleSize(t *testing.T) {
	tests := []struct {
		w, h  int
		scale float64
		want  string
	}{
		{100, 50, 2, "256x256"},
		{200, 100, 2, "512x512"},
		{300, 300, 2, "1024x1024"},
		{800, 800, 4, "1024x1024"},
		{100, 100, 0, "256x256"},
	}
	for _, tt := range tests {
		got, err := upscaleSize(imagegen.EncodeDataURL("image/png", testPNG(t, tt.w, tt.h)), tt.scale)
		if err != nil {
			t.Fatalf("upscaleSize: %v", err)
		}
		if got != tt.want {
			t.Errorf("upscaleSize(%dx%d, %v) = %q, want %q", tt.w, tt.h, tt.scale, got, tt.want)
		}
	}
}

func TestInfos_Empty(t *testing.T) {
	p := newTestProvider(t, &fakeAPI{})
	infos, err := p.Infos(context.Background())
	if err != nil || infos == nil || len(infos) != 0 {
		t.Errorf("Infos() = %v, %v", infos, err)
	}
}
