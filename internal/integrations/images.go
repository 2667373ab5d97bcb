package integrations

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedImage = errors.New("unsupported image")

// ImageProcessor shrinks uploads to a bounding box before storage.
type ImageProcessor struct {
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
}

// ProcessedImage is an encoded image ready for upload.
type ProcessedImage struct {
	Data        []byte
	ContentType string
	FileName    string
	Width       int
	Height      int
}

func NewImageProcessor() ImageProcessor {
	return ImageProcessor{MaxWidth: 1600, MaxHeight: 1600, JPEGQuality: 85}
}

// Process decodes the upload, fixes EXIF orientation, fits it into the
// bounding box and re-encodes it. PNG stays PNG to keep transparency for
// logos; every other format becomes JPEG.
func (p ImageProcessor) Process(r io.Reader, fileName string) (ProcessedImage, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return ProcessedImage{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if p.MaxWidth > 0 && p.MaxHeight > 0 {
		img = imaging.Fit(img, p.MaxWidth, p.MaxHeight, imaging.Lanczos)
	}

	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		base = "image"
	}

	format := imaging.JPEG
	contentType := "image/jpeg"
	ext := ".jpg"
	if f, err := imaging.FormatFromFilename(fileName); err == nil && f == imaging.PNG {
		format = imaging.PNG
		contentType = "image/png"
		ext = ".png"
	}

	quality := p.JPEGQuality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return ProcessedImage{}, err
	}
	bounds := img.Bounds()
	return ProcessedImage{
		Data:        buf.Bytes(),
		ContentType: contentType,
		FileName:    base + ext,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}
