package helpers

import (
	"bytes"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

// Avatar is a re-encoded image ready for upload.
type Avatar struct {
	Data        []byte
	Ext         string
	ContentType string
}

// NormalizeAvatar decodes an uploaded image, applies EXIF orientation,
// shrinks it to fit maxPx and re-encodes it in the format its filename names.
// Unknown formats are re-encoded as JPEG.
func NormalizeAvatar(r io.Reader, filename string, maxPx int) (*Avatar, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if maxPx > 0 {
		b := img.Bounds()
		if b.Dx() > maxPx || b.Dy() > maxPx {
			img = imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)
		}
	}

	format, err := imaging.FormatFromFilename(filename)
	if err != nil || (format != imaging.PNG && format != imaging.JPEG) {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	ext := strings.ToLower(format.String())
	if format == imaging.JPEG {
		ext = "jpg"
	}
	return &Avatar{Data: buf.Bytes(), Ext: ext, ContentType: "image/" + strings.ToLower(format.String())}, nil
}
