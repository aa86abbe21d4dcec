// Package testgen provides utilities for generating image files with
// configurable dimensions for testing the picture pipeline.
package testgen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Image returns an in-memory gradient image of the given size. The gradient
// keeps JPEG encoding from collapsing the file to almost nothing.
func Image(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), uint8((x + y) % 256), 255})
		}
	}
	return img
}

// PNGBytes encodes a gradient image of the given size as PNG.
func PNGBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Image(width, height)); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// JPEGBytes encodes a gradient image of the given size as JPEG.
func JPEGBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Image(width, height), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

// WritePNG writes a PNG of the given size into dir and returns its path.
func WritePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	return WriteFile(t, dir, name, PNGBytes(t, width, height))
}

// WriteJPEG writes a JPEG of the given size into dir and returns its path.
func WriteJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	return WriteFile(t, dir, name, JPEGBytes(t, width, height))
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}
