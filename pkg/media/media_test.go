package media

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) image.Point {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Size()
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/png", DetectContentType(pngBytes(t, 2, 2)))
	assert.Equal(t, "text/plain", DetectContentType([]byte("Hello")))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.png"))
	assert.True(t, IsImage("a.JPG"))
	assert.False(t, IsImage("a.txt"))
}

func TestThumbnailName(t *testing.T) {
	assert.Equal(t, "photo_small.jpg", ThumbnailName("photo.jpg", "small"))
	assert.Equal(t, "README_small", ThumbnailName("README", "small"))
}

func TestThumbnail_FitsBox(t *testing.T) {
	out, err := Thumbnail("a.png", pngBytes(t, 400, 200), ThumbnailOptions{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: 100, Y: 50}, decodeSize(t, out))
}

func TestOptimize_KeepsSmallImages(t *testing.T) {
	out, err := Optimize("a.png", pngBytes(t, 50, 40), OptimizeOptions{MaxWidth: 100, MaxHeight: 100, Quality: 80})
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: 50, Y: 40}, decodeSize(t, out))
}

func TestOptimize_ShrinksLargeImages(t *testing.T) {
	out, err := Optimize("a.png", pngBytes(t, 1000, 500), OptimizeOptions{MaxWidth: 200, MaxHeight: 200, Quality: 80})
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: 200, Y: 100}, decodeSize(t, out))
}

func TestThumbnail_RejectsNonImage(t *testing.T) {
	_, err := Thumbnail("a.txt", []byte("Hello"), ThumbnailOptions{Width: 10, Height: 10})
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrInvalidArgument))

	_, err = Thumbnail("a.png", []byte("not a png"), ThumbnailOptions{Width: 10, Height: 10})
	assert.True(t, metadata.IsErrorCode(err, metadata.ErrInvalidArgument))
}
