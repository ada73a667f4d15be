package enrich

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	thumbnailBox     = 200
	thumbnailQuality = 80
)

// GenerateThumbnail renders a JPEG preview of an image scaled to fit inside
// a 200px box, returned as a base64 data URI. Images already inside the box
// are re-encoded at their native size; nothing is ever upscaled.
func GenerateThumbnail(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > thumbnailBox || bounds.Dy() > thumbnailBox {
		img = imaging.Fit(img, thumbnailBox, thumbnailBox, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
