package utils

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/nfnt/resize"
)

// IsImage reports whether the content type is an image format the
// optimizer can re-encode
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/jpeg") ||
		strings.HasPrefix(contentType, "image/png")
}

// OptimizeImage downscales an attachment image to maxWidth, keeping the
// aspect ratio. Images already narrow enough, and formats that cannot be
// re-encoded, are returned unchanged.
func OptimizeImage(data []byte, maxWidth uint) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, nil
	}

	scaled := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85})
	case "png":
		err = png.Encode(&buf, scaled)
	default:
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
