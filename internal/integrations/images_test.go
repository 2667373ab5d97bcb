package integrations

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestImageProcessorFitsIntoBox(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	for x := 0; x < 2000; x += 10 {
		src.Set(x, 500, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode source: %v", err)
	}

	out, err := ImageProcessor{MaxWidth: 800, MaxHeight: 800}.Process(&buf, "Sponsor Logo.PNG")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Width != 800 || out.Height != 400 {
		t.Fatalf("unexpected size %dx%d", out.Width, out.Height)
	}
	if out.ContentType != "image/png" || out.FileName != "Sponsor Logo.png" {
		t.Fatalf("unexpected output: %s %s", out.ContentType, out.FileName)
	}
	if _, err := png.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
}

func TestImageProcessorConvertsToJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode source: %v", err)
	}
	out, err := NewImageProcessor().Process(&buf, "speaker.webp")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.ContentType != "image/jpeg" || !strings.HasSuffix(out.FileName, ".jpg") {
		t.Fatalf("unexpected output: %s %s", out.ContentType, out.FileName)
	}
	if out.Width != 100 || out.Height != 50 {
		t.Fatalf("small image must not be upscaled: %dx%d", out.Width, out.Height)
	}
}

func TestImageProcessorRejectsGarbage(t *testing.T) {
	_, err := NewImageProcessor().Process(strings.NewReader("not an image"), "x.png")
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}
