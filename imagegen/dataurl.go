package imagegen

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ErrInvalidDataURL is returned for strings that are not base64 data URLs.
var ErrInvalidDataURL = errors.New("imagegen: invalid data URL")

const defaultImageMIME = "image/png"

// EncodeDataURL returns data as a base64 data URL of the given MIME type.
func EncodeDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = defaultImageMIME
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and payload.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if mime == "" {
		mime = "text/plain"
	}
	return mime, data, nil
}

// Base64ToDataURL wraps a bare base64 image as a data URL. Strings that are
// already data URLs are returned unchanged.
func Base64ToDataURL(b64, mime string) string {
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	if mime == "" {
		mime = defaultImageMIME
	}
	return "data:" + mime + ";base64," + b64
}

// DataURLToBase64 strips the data URL header, leaving the base64 payload.
func DataURLToBase64(dataURL string) (string, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	_, payload, _ := strings.Cut(dataURL, ",")
	if payload == "" {
		return "", fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	return payload, nil
}

// FileToDataURL reads an image file and encodes it as a data URL, sniffing
// the MIME type from its content.
func FileToDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("imagegen: failed to read image file: %w", err)
	}
	return EncodeDataURL(sniffMIME(data), data), nil
}

func sniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i != -1 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return defaultImageMIME
	}
	return mime
}
