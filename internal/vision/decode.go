package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
)

// DecodeImage accepts JPEG and PNG only, sniffed from the content rather
// than the file name. It returns the decoded image and "jpeg" or "png".
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", ErrUnsupportedInput)
	}

	var (
		img    image.Image
		format string
		err    error
	)
	switch contentType := http.DetectContentType(data); contentType {
	case "image/jpeg":
		format = "jpeg"
		img, err = jpeg.Decode(bytes.NewReader(data))
	case "image/png":
		format = "png"
		img, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, "", fmt.Errorf("%w: content type %s", ErrUnsupportedInput, contentType)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode %s: %v", ErrUnsupportedInput, format, err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, "", fmt.Errorf("%w: empty image", ErrUnsupportedInput)
	}
	return img, format, nil
}
