// Package imaging prepares raster pages for recognition: grayscale
// binarization, padded cropping and PNG encoding.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
)

// Threshold is the luminance cut between black and white.
const Threshold = 128

// Binarize converts img to single-channel grayscale and thresholds it:
// luminance below Threshold becomes 0, everything else 255. The result has
// its origin at (0,0). It never modifies img.
func Binarize(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * out.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			lum := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			if lum < Threshold {
				out.Pix[row+x-b.Min.X] = 0
			} else {
				out.Pix[row+x-b.Min.X] = 255
			}
		}
	}
	return out
}

// PadRect expands r by padding on every side and clamps it to bounds.
func PadRect(r image.Rectangle, bounds image.Rectangle, padding int) image.Rectangle {
	padded := image.Rect(r.Min.X-padding, r.Min.Y-padding, r.Max.X+padding, r.Max.Y+padding)
	return padded.Intersect(bounds)
}

// Crop copies the padded, clamped region r of img into a new image with
// origin (0,0). It returns the copy and the rectangle actually used. An empty
// rectangle yields an error.
func Crop(img image.Image, r image.Rectangle, padding int) (image.Image, image.Rectangle, error) {
	rect := PadRect(r, img.Bounds(), padding)
	if rect.Empty() {
		return nil, rect, fmt.Errorf("crop region %v outside image bounds %v", r, img.Bounds())
	}

	dst := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)
	return dst, rect, nil
}

// EncodePNG encodes img as PNG for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
