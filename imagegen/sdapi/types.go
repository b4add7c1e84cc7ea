package sdapi

// Endpoint paths under the web service root.
const (
	pathTxt2Img     = "/sdapi/v1/txt2img"
	pathImg2Img     = "/sdapi/v1/img2img"
	pathExtraSingle = "/sdapi/v1/extra-single-image"
	pathProgress    = "/sdapi/v1/progress"
	pathInterrogate = "/sdapi/v1/interrogate"
	pathSamplers    = "/sdapi/v1/samplers"
	pathUpscalers   = "/sdapi/v1/upscalers"
	pathSDModels    = "/sdapi/v1/sd-models"
	pathEmbeddings  = "/sdapi/v1/embeddings"
)

// generationResponse is returned by txt2img and img2img.
type generationResponse struct {
	Images     []string       `json:"images"`
	Parameters map[string]any `json:"parameters"`
	Info       string         `json:"info"`
}

// extraSingleResponse is returned by extra-single-image.
type extraSingleResponse struct {
	Image    string `json:"image"`
	HTMLInfo string `json:"html_info"`
}

// Progress is the state of the job currently running on the service.
type Progress struct {
	// Progress is the completed fraction, 0..1.
	Progress    float64        `json:"progress"`
	ETARelative float64        `json:"eta_relative"`
	State       map[string]any `json:"state,omitempty"`

	// CurrentImage is the base64 preview, empty when skipped or not ready.
	CurrentImage string `json:"current_image,omitempty"`
	TextInfo     string `json:"textinfo,omitempty"`
}

// Sampler is one entry of the samplers listing.
type Sampler struct {
	Name    string            `json:"name"`
	Aliases []string          `json:"aliases"`
	Options map[string]string `json:"options"`
}

// Upscaler is one entry of the upscalers listing.
type Upscaler struct {
	Name      string   `json:"name"`
	ModelName string   `json:"model_name,omitempty"`
	ModelPath string   `json:"model_path,omitempty"`
	ModelURL  string   `json:"model_url,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
}

// SDModel is one installed checkpoint.
type SDModel struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Hash      string `json:"hash,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	Filename  string `json:"filename"`
	Config    string `json:"config,omitempty"`
}

// Embedding describes one textual inversion embedding.
type Embedding struct {
	Step             *int   `json:"step,omitempty"`
	SDCheckpoint     string `json:"sd_checkpoint,omitempty"`
	SDCheckpointName string `json:"sd_checkpoint_name,omitempty"`
	Shape            int    `json:"shape"`
	Vectors          int    `json:"vectors"`
}

// Embeddings splits embeddings into those loaded for the current model and
// those skipped as incompatible.
type Embeddings struct {
	Loaded  map[string]Embedding `json:"loaded"`
	Skipped map[string]Embedding `json:"skipped"`
}

type interrogateRequest struct {
	Image string `json:"image"`
	Model string `json:"model"`
}

type interrogateResponse struct {
	Caption string `json:"caption"`
}
