package imagegen

import (
	"github.com/samber/lo"
)

// SDParams maps a request onto the stable-diffusion parameter names shared
// by the webui and the gateway:
//
//	size "WxH"   -> width, height
//	n            -> n_iter
//	image        -> init_images: [image]
//	mask         -> mask
//	resize       -> resize_mode (index in fill, cover, contain)
//
// AdvanceOptions are merged last and win over mapped fields. Nil values and
// empty strings are dropped. Txt2img callers pass Img2ImgRequest{Txt2ImgRequest: r}.
func SDParams(req Img2ImgRequest) map[string]any {
	params := map[string]any{
		"prompt": req.Prompt,
		"mask":   req.Mask,
	}
	if width, height, err := ParseSize(req.Size); err == nil {
		params["width"] = width
		params["height"] = height
	}
	if req.N > 0 {
		params["n_iter"] = req.N
	}
	if req.Image != "" {
		params["init_images"] = []string{req.Image}
	}
	if idx, ok := req.Resize.Index(); ok {
		params["resize_mode"] = idx
	}

	params = lo.Assign(params, req.AdvanceOptions)
	return lo.OmitBy(params, func(_ string, v any) bool {
		return isEmptyParam(v)
	})
}

func isEmptyParam(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}
