package gui

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
)

// Poster bounds inside the confirmation window
const (
	posterWidth  = 480
	posterHeight = 270
)

// loadPoster decodes the preview still and shrinks it to fit the poster
// area, keeping its aspect ratio. Images already inside the bounds are
// returned as decoded.
func loadPoster(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode poster %s: %w", path, err)
	}

	return resize.Thumbnail(posterWidth, posterHeight, img, resize.Lanczos3), nil
}
