package pnginfo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"golang.org/x/text/encoding/charmap"
)

// Signature is the fixed 8-byte sequence every PNG stream starts with.
var Signature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// ParametersKey is the annotation key diffusion front-ends use for the
// generation settings text.
const ParametersKey = "parameters"

const (
	chunkText = "tEXt"
	chunkEnd  = "IEND"

	chunkHeaderSize = 8 // length + type
	chunkCRCSize    = 4

	maxKeyLength = 79
)

// chunk is one length-prefixed, typed, checksummed block of the stream.
type chunk struct {
	offset int
	typ    string
	data   []byte
}

// size returns the number of bytes the chunk occupies in the stream.
func (c chunk) size() int {
	return chunkHeaderSize + len(c.data) + chunkCRCSize
}

// walk validates the signature and calls fn for every chunk in order.
// The checksum is skipped, not verified.
func walk(data []byte, fn func(c chunk) error) error {
	if len(data) < len(Signature) || !bytes.Equal(data[:len(Signature)], Signature) {
		return newFormatError(0, "not a PNG image: signature mismatch")
	}

	pos := len(Signature)
	for pos < len(data) {
		if len(data)-pos < chunkHeaderSize {
			return newFormatError(pos, "truncated chunk header")
		}
		length := binary.BigEndian.Uint32(data[pos : pos+4])
		typ := string(data[pos+4 : pos+8])
		start := pos + chunkHeaderSize

		// uint64 so a huge length cannot wrap around on 32-bit platforms
		if uint64(length)+chunkCRCSize > uint64(len(data)-start) {
			return newFormatError(pos, fmt.Sprintf("chunk %q declares %d bytes past end of data", typ, length))
		}

		end := start + int(length)
		if err := fn(chunk{offset: pos, typ: typ, data: data[start:end]}); err != nil {
			return err
		}
		pos = end + chunkCRCSize
	}
	return nil
}

// Extract returns every tEXt annotation in data as a Record.
//
// Chunks other than tEXt are skipped. Any structural problem (bad signature,
// chunk running past the end, tEXt payload without a NUL separator) fails the
// whole call with a *FormatError.
func Extract(data []byte) (*Record, error) {
	rec := NewRecord()
	err := walk(data, func(c chunk) error {
		if c.typ != chunkText {
			return nil
		}
		key, value, err := decodeText(c)
		if err != nil {
			return err
		}
		rec.Set(key, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Parameters extracts the "parameters" annotation from data and decodes it.
// An image without the annotation yields empty parameters and no error.
func Parameters(data []byte) (GenerationParameters, error) {
	rec, err := Extract(data)
	if err != nil {
		return GenerationParameters{}, err
	}
	text, _ := rec.Get(ParametersKey)
	return ParseParameters(text), nil
}

// Encode builds a minimal PNG stream (signature, one tEXt chunk per record
// entry, IEND) carrying rec. It is the inverse of Extract for text-only data.
func Encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Signature)
	for _, key := range rec.Keys() {
		value, _ := rec.Get(key)
		payload, err := encodeText(key, value)
		if err != nil {
			return nil, err
		}
		writeChunk(&buf, chunkText, payload)
	}
	writeChunk(&buf, chunkEnd, nil)
	return buf.Bytes(), nil
}

// SetText returns a copy of data whose tEXt annotation for key holds value.
//
// Existing annotations for key are replaced at the position of the first one.
// Otherwise the new chunk goes right before IEND, or at the end of the stream
// if IEND is missing.
func SetText(data []byte, key, value string) ([]byte, error) {
	payload, err := encodeText(key, value)
	if err != nil {
		return nil, err
	}
	return rewriteText(data, key, func(buf *bytes.Buffer) {
		writeChunk(buf, chunkText, payload)
	})
}

// RemoveText returns a copy of data without any tEXt annotation for key.
func RemoveText(data []byte, key string) ([]byte, error) {
	return rewriteText(data, key, nil)
}

// rewriteText copies data chunk by chunk, dropping tEXt chunks for key and
// calling insert (if set) once at the replacement point.
func rewriteText(data []byte, key string, insert func(*bytes.Buffer)) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) + 64)
	buf.Write(Signature)

	inserted := insert == nil
	err := walk(data, func(c chunk) error {
		if c.typ == chunkText {
			k, _, err := decodeText(c)
			if err != nil {
				return err
			}
			if k == key {
				if !inserted {
					insert(&buf)
					inserted = true
				}
				return nil
			}
		}
		if c.typ == chunkEnd && !inserted {
			insert(&buf)
			inserted = true
		}
		buf.Write(data[c.offset : c.offset+c.size()])
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		insert(&buf)
	}
	return buf.Bytes(), nil
}

// decodeText splits a tEXt payload at its first NUL and converts both halves
// from ISO-8859-1.
func decodeText(c chunk) (string, string, error) {
	sep := bytes.IndexByte(c.data, 0)
	if sep < 0 {
		return "", "", newFormatError(c.offset, "tEXt chunk has no key/value separator")
	}
	dec := charmap.ISO8859_1.NewDecoder()
	key, err := dec.Bytes(c.data[:sep])
	if err != nil {
		return "", "", newFormatError(c.offset, "tEXt key is not ISO-8859-1")
	}
	value, err := dec.Bytes(c.data[sep+1:])
	if err != nil {
		return "", "", newFormatError(c.offset, "tEXt value is not ISO-8859-1")
	}
	return string(key), string(value), nil
}

// encodeText builds a tEXt payload. Keys are 1-79 bytes without NUL, and
// both halves must be representable in ISO-8859-1.
func encodeText(key, value string) ([]byte, error) {
	enc := charmap.ISO8859_1.NewEncoder()
	k, err := enc.Bytes([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("pnginfo: key %q is not representable in ISO-8859-1: %w", key, err)
	}
	if len(k) == 0 || len(k) > maxKeyLength {
		return nil, fmt.Errorf("pnginfo: key length %d must be between 1 and %d", len(k), maxKeyLength)
	}
	if bytes.IndexByte(k, 0) >= 0 {
		return nil, fmt.Errorf("pnginfo: key %q contains NUL", key)
	}
	v, err := enc.Bytes([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("pnginfo: value for %q is not representable in ISO-8859-1: %w", key, err)
	}

	payload := make([]byte, 0, len(k)+1+len(v))
	payload = append(payload, k...)
	payload = append(payload, 0)
	payload = append(payload, v...)
	return payload, nil
}

// writeChunk appends a complete chunk, including its CRC-32, to buf.
func writeChunk(buf *bytes.Buffer, typ string, payload []byte) {
	var header [chunkHeaderSize]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	copy(header[4:], typ)

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(payload)

	var sum [chunkCRCSize]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())

	buf.Write(header[:])
	buf.Write(payload)
	buf.Write(sum[:])
}
