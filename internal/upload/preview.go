package upload

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// ThumbnailSize bounds both sides of a preview thumbnail, in pixels.
const ThumbnailSize = 320

// Preview is a locally produced, data-representable rendition of a staged
// image.
type Preview struct {
	// DataURL is a data: URL holding either a JPEG thumbnail or, when the
	// image could not be decoded locally, the original bytes.
	DataURL string
	// Width and Height describe the decoded source image; zero when it could
	// not be decoded.
	Width  int
	Height int
	// Thumbnail reports whether DataURL holds a downscaled JPEG.
	Thumbnail bool
}

func buildPreview(contentType string, data []byte) Preview {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Preview{DataURL: dataURL(contentType, data)}
	}

	bounds := img.Bounds()
	thumb := resize.Thumbnail(ThumbnailSize, ThumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return Preview{DataURL: dataURL(contentType, data), Width: bounds.Dx(), Height: bounds.Dy()}
	}
	return Preview{
		DataURL:   dataURL("image/jpeg", buf.Bytes()),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Thumbnail: true,
	}
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
