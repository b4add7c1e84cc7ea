package gateway

import "spellforge/imagegen/sdapi"

// Endpoint paths under the gateway host.
const (
	pathAIGC       = "/api/aigc"
	pathIPFS       = "/api/ipfs/"
	pathSamplers   = "/api/aigc/samplers"
	pathUpscalers  = "/api/aigc/upscalers"
	pathSDModels   = "/api/aigc/sd-models"
	pathEmbeddings = "/api/aigc/embeddings"
	pathLoras      = "/api/aigc/loras"
)

// API names accepted in a job submission.
const (
	apiTxt2Img = "txt2img"
	apiImg2Img = "img2img"
)

// submitRequest is the body of POST /api/aigc.
type submitRequest struct {
	API          string         `json:"api"`
	Params       map[string]any `json:"params"`
	Mode         string         `json:"mode"`
	Requirements map[string]any `json:"requirements,omitempty"`
}

// jobState is returned on submission and by every result probe.
type jobState struct {
	ID            string     `json:"id"`
	Progress      float64    `json:"progress"`
	ProgressImage string     `json:"progressImage,omitempty"`
	Result        *jobResult `json:"result,omitempty"`
}

func (s *jobState) done() bool {
	return s.Progress >= 1
}

// jobResult carries IPFS CIDs in Images until they are fetched.
type jobResult struct {
	Images     []string       `json:"images"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Info       string         `json:"info,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Lora is one LoRA network offered by the gateway.
type Lora struct {
	Name     string         `json:"name"`
	Alias    string         `json:"alias,omitempty"`
	Path     string         `json:"path,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// The gateway proxies the webui listings unchanged.
type (
	Sampler    = sdapi.Sampler
	Upscaler   = sdapi.Upscaler
	SDModel    = sdapi.SDModel
	Embeddings = sdapi.Embeddings
)
