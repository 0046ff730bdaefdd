package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"math"
)

// EncodePNG serializes an imagery tile for caching and transport.
func EncodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodePNG(data []byte) (*image.NRGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return ToNRGBA(img), nil
}

// Heightfield wire layout: uint32 width, uint32 height, then width*height
// float32 samples in row-major order, all little-endian.
const heightfieldHeaderLen = 8

func EncodeHeightfield(hf *Heightfield) []byte {
	out := make([]byte, heightfieldHeaderLen+4*len(hf.Data))
	binary.LittleEndian.PutUint32(out[0:4], uint32(hf.W))
	binary.LittleEndian.PutUint32(out[4:8], uint32(hf.H))
	for i, v := range hf.Data {
		binary.LittleEndian.PutUint32(out[heightfieldHeaderLen+4*i:], math.Float32bits(v))
	}
	return out
}

func DecodeHeightfield(data []byte) (*Heightfield, error) {
	if len(data) < heightfieldHeaderLen {
		return nil, fmt.Errorf("heightfield payload too short: %d bytes", len(data))
	}
	w := int(binary.LittleEndian.Uint32(data[0:4]))
	h := int(binary.LittleEndian.Uint32(data[4:8]))
	if w <= 0 || h <= 0 || w > 1<<15 || h > 1<<15 {
		return nil, fmt.Errorf("heightfield payload has implausible dims %dx%d", w, h)
	}
	if want := heightfieldHeaderLen + 4*w*h; len(data) != want {
		return nil, fmt.Errorf("heightfield payload length %d, want %d for %dx%d", len(data), want, w, h)
	}
	hf := NewHeightfield(w, h)
	for i := range hf.Data {
		hf.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[heightfieldHeaderLen+4*i:]))
	}
	return hf, nil
}
