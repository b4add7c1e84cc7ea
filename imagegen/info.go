package imagegen

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"spellforge/pnginfo"
)

// InfoFromDataURL decodes the generation parameters embedded in a PNG data
// URL. Images without them yield empty parameters.
func InfoFromDataURL(dataURL string) (pnginfo.GenerationParameters, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return pnginfo.GenerationParameters{}, err
	}
	params, err := pnginfo.Parameters(data)
	if err != nil {
		return pnginfo.GenerationParameters{}, fmt.Errorf("imagegen: read image info: %w", err)
	}
	return params, nil
}

// UpdateInfoOfDataURL writes each entry of info as a text annotation (keys
// in sorted order) and returns the new PNG data URL.
func UpdateInfoOfDataURL(dataURL string, info map[string]string) (string, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	keys := lo.Keys(info)
	sort.Strings(keys)
	for _, key := range keys {
		data, err = pnginfo.SetText(data, key, info[key])
		if err != nil {
			return "", fmt.Errorf("imagegen: write image info %q: %w", key, err)
		}
	}
	return EncodeDataURL("image/png", data), nil
}

// RemoveInfoOfDataURL strips the generation parameters annotation.
func RemoveInfoOfDataURL(dataURL string) (string, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	data, err = pnginfo.RemoveText(data, pnginfo.ParametersKey)
	if err != nil {
		return "", fmt.Errorf("imagegen: remove image info: %w", err)
	}
	return EncodeDataURL("image/png", data), nil
}
