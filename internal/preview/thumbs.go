// Package preview renders downscaled thumbnails of images in the
// current directory so the canvas can draw icons without fetching
// full-size files.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
)

const (
	// DefaultMaxSize bounds a thumbnail's longest edge.
	DefaultMaxSize = 400
	jpegQuality    = 80
)

// Render reads the image at path, corrects its EXIF orientation, fits
// it inside maxSize x maxSize preserving aspect ratio, and returns the
// JPEG bytes. maxSize <= 0 falls back to DefaultMaxSize.
func Render(path string, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	orientation := readOrientation(f)
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	img = applyOrientation(img, orientation)
	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail for %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// applyOrientation transforms an image according to its EXIF
// orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
