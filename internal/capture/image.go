package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Decode decodes a jpeg, png, gif, bmp or webp image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Resize scales img to exactly width x height. It returns img unchanged when
// the size already matches or a dimension is not positive.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() == width && b.Dy() == height) {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Downscale multiplies both dimensions of img by scale (0 < scale <= 1).
func Downscale(img image.Image, scale float64) image.Image {
	if scale <= 0 || scale >= 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	return Resize(img, w, h)
}

// EncodeJPEG encodes img for the encoder service.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// FitWithin scales img down so neither side exceeds maxSize, keeping the aspect ratio.
func FitWithin(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// PrepareImage decodes an image file, fits it within maxSize and re-encodes it as JPEG.
func PrepareImage(data []byte, maxSize int) ([]byte, error) {
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(FitWithin(img, maxSize))
}
