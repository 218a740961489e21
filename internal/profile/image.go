package profile

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ImageInfo reads the dimensions and format of an image without decoding
// its pixels.
func ImageInfo(path string) (width, height int, format string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// IsSquare reports whether an image has a square aspect ratio.
func IsSquare(width, height int) bool {
	return width > 0 && width == height
}
