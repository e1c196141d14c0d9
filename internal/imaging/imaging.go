// Package imaging normalises uploaded photos (product pictures and delivery
// receipts) before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxUploadBytes caps the size of an accepted upload.
const MaxUploadBytes = 10 << 20

// ErrUnsupportedFormat is returned for anything that is not a JPEG or PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format (only JPEG and PNG accepted)")

// Profile controls how an image is re-encoded.
type Profile struct {
	MaxDimension int
	Quality      int
}

var (
	// ProductImage is used for catalog pictures.
	ProductImage = Profile{MaxDimension: 1024, Quality: 85}
	// ReceiptImage keeps delivery paperwork legible.
	ReceiptImage = Profile{MaxDimension: 2048, Quality: 90}
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Result contains the processed image data.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process sniffs the format from the bytes, downscales to the profile's
// bounds and re-encodes as JPEG. Transparent areas become white.
func Process(r io.Reader, p Profile) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	out := flatten(img, p.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := out.Bounds()
	return &Result{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// flatten draws img onto a white canvas no larger than maxDim on either side,
// preserving the aspect ratio.
func flatten(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := fit(bounds.Dx(), bounds.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w > h {
		h = int(float64(h) * float64(maxDim) / float64(w))
		w = maxDim
	} else {
		w = int(float64(w) * float64(maxDim) / float64(h))
		h = maxDim
	}
	return max(w, 1), max(h, 1)
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
