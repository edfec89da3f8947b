// Package media derives content type information and image variants
// (thumbnails, size-optimized re-encodes) from stored bytes.
package media

import (
	"bytes"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/marmos91/dittofiles/pkg/content/location"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// ThumbnailOptions controls thumbnail generation.
type ThumbnailOptions struct {
	Width  int
	Height int

	// Suffix is appended to the image stem: "photo.jpg" -> "photo_small.jpg"
	Suffix string
}

// OptimizeOptions controls in-place image optimization.
type OptimizeOptions struct {
	MaxWidth  int
	MaxHeight int

	// Quality is the JPEG quality (1-100)
	Quality int
}

// DetectContentType sniffs the MIME type of data, without parameters.
func DetectContentType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// IsImage reports whether name is an image format the encoder supports.
func IsImage(name string) bool {
	_, err := imaging.FormatFromFilename(name)
	return err == nil
}

// ThumbnailName returns the on-disk name of name's thumbnail.
func ThumbnailName(name, suffix string) string {
	stem, ext := location.SplitExt(name)
	return stem + "_" + suffix + ext
}

// Thumbnail renders data, an image named name, to fit within the configured
// box while keeping its aspect ratio. Images already inside the box are
// re-encoded unchanged in size.
func Thumbnail(name string, data []byte, opts ThumbnailOptions) ([]byte, error) {
	img, format, err := decode(name, data)
	if err != nil {
		return nil, err
	}
	return encode(name, fit(img, opts.Width, opts.Height), format, 85)
}

// Optimize shrinks an image larger than the configured bounds and re-encodes
// it. The returned bytes replace the original in place.
func Optimize(name string, data []byte, opts OptimizeOptions) ([]byte, error) {
	img, format, err := decode(name, data)
	if err != nil {
		return nil, err
	}
	return encode(name, fit(img, opts.MaxWidth, opts.MaxHeight), format, opts.Quality)
}

func decode(name string, data []byte) (image.Image, imaging.Format, error) {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return nil, 0, metadata.NewError(metadata.ErrInvalidArgument, name, "not a supported image")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, metadata.NewError(metadata.ErrInvalidArgument, name, "cannot decode image: %v", err)
	}
	return img, format, nil
}

func fit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if w <= 0 || h <= 0 || (b.Dx() <= w && b.Dy() <= h) {
		return img
	}
	return imaging.Fit(img, w, h, imaging.Lanczos)
}

func encode(name string, img image.Image, format imaging.Format, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, metadata.NewError(metadata.ErrIOError, name, "cannot encode image: %v", err)
	}
	return buf.Bytes(), nil
}
