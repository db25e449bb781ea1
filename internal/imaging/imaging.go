// Package imaging bounds uploaded avatar and reward images to a size the game
// store can hold: width capped, height scaled proportionally, JPEG re-encoded
// at reduced quality.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrNotImage = errors.New("not a recognizable image")

const (
	DefaultMaxWidth = 300
	DefaultQuality  = 60

	dataURLPrefix = "data:image"
	jpegDataURL   = "data:image/jpeg;base64,"
)

type Normalizer struct {
	MaxWidth int
	Quality  int
}

func New(maxWidth, quality int) Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return Normalizer{MaxWidth: maxWidth, Quality: quality}
}

// NormalizeBytes decodes data, scales it down to MaxWidth and re-encodes it
// as JPEG. Images narrower than MaxWidth keep their dimensions.
func (n Normalizer) NormalizeBytes(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	dst := n.scale(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeDataURL re-encodes an image data URL. Anything that is not a
// decodable image data URL is returned unchanged.
func (n Normalizer) NormalizeDataURL(s string) string {
	if !strings.HasPrefix(s, dataURLPrefix) {
		return s
	}
	data, err := DecodeDataURL(s)
	if err != nil {
		return s
	}
	out, err := n.NormalizeBytes(data)
	if err != nil {
		return s
	}
	return DataURL(out)
}

func (n Normalizer) scale(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > n.MaxWidth {
		h = h * n.MaxWidth / w
		w = n.MaxWidth
		if h < 1 {
			h = 1
		}
	}

	// JPEG has no alpha; flatten onto white like a canvas export would.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// DataURL wraps JPEG bytes in a base64 data URL.
func DataURL(jpegData []byte) string {
	return jpegDataURL + base64.StdEncoding.EncodeToString(jpegData)
}

// DecodeDataURL returns the payload of a base64 image data URL.
func DecodeDataURL(s string) ([]byte, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, dataURLPrefix) || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return data, nil
}
