package imagegen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image fitting errors
var (
	ErrInvalidImage      = errors.New("imagegen: invalid image data")
	ErrInvalidDimensions = errors.New("imagegen: invalid dimensions")
)

// DecodeImage decodes PNG, JPEG, GIF or WebP data.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// FitImage scales data to width x height and returns PNG bytes.
//
//	fill    stretches to the target, ignoring aspect ratio
//	cover   scales to cover the target and crops the overflow (centered)
//	contain scales to fit inside the target and pads with transparency
func FitImage(data []byte, width, height int, mode ResizeMode) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if mode == "" {
		mode = ResizeCover
	}
	src, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	srcBounds := src.Bounds()
	sw, sh := srcBounds.Dx(), srcBounds.Dy()
	if sw == 0 || sh == 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrInvalidDimensions, sw, sh)
	}

	switch mode {
	case ResizeFill:
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcBounds, draw.Src, nil)

	case ResizeCover:
		scale := max(float64(width)/float64(sw), float64(height)/float64(sh))
		// Source window that maps onto the whole target.
		cw := min(sw, int(float64(width)/scale+0.5))
		ch := min(sh, int(float64(height)/scale+0.5))
		x0 := srcBounds.Min.X + (sw-cw)/2
		y0 := srcBounds.Min.Y + (sh-ch)/2
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)

	case ResizeContain:
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
		scale := min(float64(width)/float64(sw), float64(height)/float64(sh))
		nw := max(1, int(float64(sw)*scale+0.5))
		nh := max(1, int(float64(sh)*scale+0.5))
		offX := (width - nw) / 2
		offY := (height - nh) / 2
		draw.CatmullRom.Scale(dst, image.Rect(offX, offY, offX+nw, offY+nh), src, srcBounds, draw.Src, nil)

	default:
		return nil, fmt.Errorf("%w: unknown resize mode %q", ErrInvalidRequest, mode)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("imagegen: failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// FitDataURL is FitImage over data URLs; the result is always image/png.
func FitDataURL(dataURL string, width, height int, mode ResizeMode) (string, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	fitted, err := FitImage(data, width, height, mode)
	if err != nil {
		return "", err
	}
	return EncodeDataURL("image/png", fitted), nil
}
