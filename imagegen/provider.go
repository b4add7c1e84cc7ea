package imagegen

import (
	"context"
)

// ImageProvider is implemented by every backend. Calls are synchronous:
// asynchronous backend jobs are awaited internally within Options.Timeout.
//
// Implementations must be safe for concurrent use.
type ImageProvider interface {
	// ID returns the backend identifier.
	ID() ProviderID

	// Txt2Img generates images from a prompt.
	Txt2Img(ctx context.Context, req Txt2ImgRequest, opts Options) (*Result, error)

	// Img2Img generates images from an input image and optional mask.
	Img2Img(ctx context.Context, req Img2ImgRequest, opts Options) (*Result, error)

	// Upscale enlarges an image.
	Upscale(ctx context.Context, req UpscaleRequest, opts Options) (*Result, error)

	// Infos lists the backend's capabilities. Backends without any return
	// an empty, non-nil map.
	Infos(ctx context.Context) (Infos, error)
}
