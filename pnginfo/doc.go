// Package pnginfo reads and writes the textual annotations embedded in PNG
// images, and decodes the generation settings that diffusion front-ends
// store under the "parameters" key.
//
// The package is organized in three layers:
//   - chunks.go: the chunk walker, Extract, and the tEXt writers
//   - record.go: the ordered key/value Record produced by Extract
//   - parameters.go: the decoder for the "parameters" text
//
// Example:
//
//	rec, err := pnginfo.Extract(data)
//	if err != nil {
//	    return err
//	}
//	text, _ := rec.Get(pnginfo.ParametersKey)
//	params := pnginfo.ParseParameters(text)
package pnginfo
