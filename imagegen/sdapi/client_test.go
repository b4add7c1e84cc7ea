package sdapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spellforge/core"
	"spellforge/imagegen"
)

// fakeWebUI is a minimal stand-in for the webui API.
type fakeWebUI struct {
	mu     sync.Mutex
	bodies map[string]map[string]any
	auth   []string

	// genDelay holds generation responses back.
	genDelay time.Duration
	// failPath answers 500 for this path.
	failPath string
}

func (f *fakeWebUI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bodies == nil {
		f.bodies = map[string]map[string]any{}
	}
	user, pass, ok := r.BasicAuth()
	if ok {
		f.auth = append(f.auth, user+":"+pass)
	}
	if r.Body != nil && r.Method == http.MethodPost {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.bodies[r.URL.Path] = body
	}
}

func (f *fakeWebUI) body(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeWebUI) server(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, v string) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, v)
	}

	mux := http.NewServeMux()
	generate := func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.genDelay > 0 {
			select {
			case <-time.After(f.genDelay):
			case <-r.Context().Done():
				return
			}
		}
		writeJSON(w, `{"images":["AAAA","BBBB"],"parameters":{"steps":20},"info":"{\"seed\":42}"}`)
	}
	mux.HandleFunc(pathTxt2Img, generate)
	mux.HandleFunc(pathImg2Img, generate)
	mux.HandleFunc(pathExtraSingle, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, `{"image":"CCCC","html_info":"<p>done</p>"}`)
	})
	mux.HandleFunc(pathProgress, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Query().Get("skip_current_image") != "false" {
			t.Errorf("progress should request the preview, query %q", r.URL.RawQuery)
		}
		writeJSON(w, `{"progress":0.5,"eta_relative":3.2,"current_image":"PPPP"}`)
	})
	mux.HandleFunc(pathInterrogate, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, `{"caption":"a cat on a mat"}`)
	})
	mux.HandleFunc(pathSamplers, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[{"name":"Euler a","aliases":["k_euler_a"],"options":{}}]`)
	})
	mux.HandleFunc(pathUpscalers, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[{"name":"None"},{"name":"R-ESRGAN 4x+","scale":4}]`)
	})
	mux.HandleFunc(pathSDModels, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[{"title":"v1-5.safetensors [6ce0161689]","model_name":"v1-5","hash":"6ce0161689","filename":"/m/v1-5.safetensors"}]`)
	})
	mux.HandleFunc(pathEmbeddings, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"loaded":{"easynegative":{"step":null,"shape":768,"vectors":8}},"skipped":{}}`)
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.failPath != "" && r.URL.Path == f.failPath {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, f *fakeWebUI, sc Config) *Client {
	t.Helper()
	sc.Host = f.server(t).URL + "/"
	c, err := NewWithConfig(sc, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c, err := NewWithConfig(Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Host() != core.DefaultSDAPIHost || c.ID() != imagegen.SDAPIV1 {
		t.Errorf("Host() = %q, ID() = %q", c.Host(), c.ID())
	}

	if _, err := NewWithConfig(Config{Host: "ftp://example.com"}, nil); core.GetErrorCode(err) != core.ErrCodeInvalidURL {
		t.Errorf("bad scheme: err = %v", err)
	}
	if _, err := NewWithConfig(Config{Username: "only-user"}, nil); core.GetErrorCode(err) != core.ErrCodeMissingAuth {
		t.Errorf("half basic auth: err = %v", err)
	}
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}

	c, err = New(&core.Config{SDAPIHost: "http://gpu-box:7860"}, nil)
	if err != nil || c.Host() != "http://gpu-box:7860" {
		t.Errorf("New() = %v, %v", c, err)
	}
}

func TestTxt2Img(t *testing.T) {
	f := &fakeWebUI{}
	c := newTestClient(t, f, Config{Username: "alice", Password: "secret"})

	res, err := c.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{
		Prompt:         "a cat",
		Size:           "512x768",
		N:              2,
		AdvanceOptions: map[string]any{"steps": 20, "sampler_index": "Euler a"},
	}, imagegen.Options{})
	if err != nil {
		t.Fatalf("Txt2Img: %v", err)
	}

	body := f.body(pathTxt2Img)
	want := map[string]any{
		"prompt": "a cat", "width": 512.0, "height": 768.0, "n_iter": 2.0,
		"steps": 20.0, "sampler_index": "Euler a",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, body[k], v)
		}
	}
	if _, ok := body["init_images"]; ok {
		t.Error("txt2img body should not carry init_images")
	}

	if len(res.Images) != 2 || res.Images[0] != "data:image/png;base64,AAAA" {
		t.Errorf("Images = %v", res.Images)
	}
	if res.Parameters["steps"] != 20.0 || res.Info != `{"seed":42}` {
		t.Errorf("Parameters = %v, Info = %q", res.Parameters, res.Info)
	}
	f.mu.Lock()
	auth := f.auth
	f.mu.Unlock()
	if len(auth) == 0 || auth[0] != "alice:secret" {
		t.Errorf("basic auth = %v", auth)
	}
}

func TestImg2Img(t *testing.T) {
	f := &fakeWebUI{}
	c := newTestClient(t, f, Config{})

	_, err := c.Img2Img(context.Background(), imagegen.Img2ImgRequest{
		Image:  "data:image/png;base64,IIII",
		Mask:   "data:image/png;base64,MMMM",
		Resize: imagegen.ResizeContain,
	}, imagegen.Options{})
	if err != nil {
		t.Fatalf("Img2Img: %v", err)
	}

	body := f.body(pathImg2Img)
	images, _ := body["init_images"].([]any)
	if len(images) != 1 || images[0] != "data:image/png;base64,IIII" {
		t.Errorf("init_images = %v", body["init_images"])
	}
	if body["mask"] != "data:image/png;base64,MMMM" || body["resize_mode"] != 2.0 {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["prompt"]; ok {
		t.Error("empty prompt should be dropped")
	}
}

func TestUpscale(t *testing.T) {
	tests := []struct {
		name string
		req  imagegen.UpscaleRequest
		want map[string]any
	}{
		{
			name: "scale",
			req:  imagegen.UpscaleRequest{Image: "IIII", Scale: 4, Upscaler: "R-ESRGAN 4x+"},
			want: map[string]any{"image": "IIII", "resize_mode": 0.0, "upscaling_resize": 4.0, "upscaler_1": "R-ESRGAN 4x+"},
		},
		{
			name: "default scale",
			req:  imagegen.UpscaleRequest{Image: "IIII"},
			want: map[string]any{"resize_mode": 0.0, "upscaling_resize": 2.0},
		},
		{
			name: "target size",
			req:  imagegen.UpscaleRequest{Image: "IIII", Size: "1024x768"},
			want: map[string]any{"resize_mode": 1.0, "upscaling_resize_w": 1024.0, "upscaling_resize_h": 768.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeWebUI{}
			c := newTestClient(t, f, Config{})

			res, err := c.Upscale(context.Background(), tt.req, imagegen.Options{})
			if err != nil {
				t.Fatalf("Upscale: %v", err)
			}
			if len(res.Images) != 1 || res.Images[0] != "data:image/png;base64,CCCC" || res.Info != "<p>done</p>" {
				t.Errorf("result = %+v", res)
			}
			body := f.body(pathExtraSingle)
			for k, v := range tt.want {
				if body[k] != v {
					t.Errorf("body[%q] = %v, want %v", k, body[k], v)
				}
			}
		})
	}
}

func TestTxt2Img_ReportsProgress(t *testing.T) {
	f := &fakeWebUI{genDelay: 150 * time.Millisecond}
	c := newTestClient(t, f, Config{})

	var calls atomic.Int32
	var mu sync.Mutex
	var lastPercent int
	var lastPreview string
	opts := imagegen.Options{
		Interval: 20 * time.Millisecond,
		OnProgress: func(percent int, preview string) {
			calls.Add(1)
			mu.Lock()
			lastPercent, lastPreview = percent, preview
			mu.Unlock()
		},
	}

	if _, err := c.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat"}, opts); err != nil {
		t.Fatalf("Txt2Img: %v", err)
	}

	n := calls.Load()
	if n == 0 {
		t.Fatal("expected progress callbacks")
	}
	mu.Lock()
	if lastPercent != 50 || lastPreview != "data:image/png;base64,PPPP" {
		t.Errorf("last progress = (%d, %q)", lastPercent, lastPreview)
	}
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	if after := calls.Load(); after != n {
		t.Errorf("progress reported after return: %d -> %d", n, after)
	}
}

func TestTxt2Img_Timeout(t *testing.T) {
	f := &fakeWebUI{genDelay: time.Second}
	c := newTestClient(t, f, Config{})

	start := time.Now()
	_, err := c.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat"}, imagegen.Options{Timeout: 40 * time.Millisecond})
	if !errors.Is(err, imagegen.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("returned after %v", elapsed)
	}
}

func TestTxt2Img_APIError(t *testing.T) {
	f := &fakeWebUI{failPath: pathTxt2Img}
	c := newTestClient(t, f, Config{})

	_, err := c.Txt2Img(context.Background(), imagegen.Txt2ImgRequest{Prompt: "a cat"}, imagegen.Options{})
	var apiErr *imagegen.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *imagegen.APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Provider != imagegen.SDAPIV1 {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestInfos(t *testing.T) {
	f := &fakeWebUI{}
	c := newTestClient(t, f, Config{})

	infos, err := c.Infos(context.Background())
	if err != nil {
		t.Fatalf("Infos: %v", err)
	}
	for _, key := range []string{"samplers", "upscalers", "sdmodels", "embeddings"} {
		if _, ok := infos[key]; !ok {
			t.Errorf("missing %q", key)
		}
	}
	if s := infos["samplers"].([]Sampler); len(s) != 1 || s[0].Name != "Euler a" {
		t.Errorf("samplers = %+v", s)
	}
	if u := infos["upscalers"].([]Upscaler); len(u) != 2 || u[1].Scale == nil || *u[1].Scale != 4 {
		t.Errorf("upscalers = %+v", u)
	}
	if e := infos["embeddings"].(*Embeddings); e.Loaded["easynegative"].Vectors != 8 {
		t.Errorf("embeddings = %+v", e)
	}
}

func TestInfos_Failure(t *testing.T) {
	f := &fakeWebUI{failPath: pathSDModels}
	c := newTestClient(t, f, Config{})

	if _, err := c.Infos(context.Background()); err == nil {
		t.Error("expected error when one listing fails")
	}
}

func TestInterrogate(t *testing.T) {
	f := &fakeWebUI{}
	c := newTestClient(t, f, Config{})

	caption, err := c.Interrogate(context.Background(), "data:image/png;base64,IIII", "")
	if err != nil {
		t.Fatalf("Interrogate: %v", err)
	}
	if caption != "a cat on a mat" {
		t.Errorf("caption = %q", caption)
	}
	if body := f.body(pathInterrogate); body["model"] != DefaultInterrogateModel {
		t.Errorf("body = %v", body)
	}

	if _, err := c.Interrogate(context.Background(), "", ""); !errors.Is(err, imagegen.ErrInvalidRequest) {
		t.Errorf("err = %v", err)
	}
}
