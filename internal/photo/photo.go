// Package photo turns an uploaded image into the opaque reference stored on
// the profile: a base64 data URI.
package photo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxSize is the largest accepted upload, 5 MiB.
const MaxSize int64 = 5 * 1024 * 1024

// MaxDimension bounds each side of an accepted image in pixels. A small
// compressed file can declare a huge canvas.
const MaxDimension = 4096

var (
	ErrNotImage   = errors.New("please select an image file")
	ErrTooLarge   = errors.New("file size should be less than 5MB")
	ErrEmpty      = errors.New("photo is empty")
	ErrInvalidURI = errors.New("invalid data URI")
)

// Validate checks an upload's declared media type and size.
func Validate(mediaType string, size int64) error {
	if !strings.HasPrefix(normalizeMediaType(mediaType), "image/") {
		return fmt.Errorf("%w: %q", ErrNotImage, mediaType)
	}
	if size > MaxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, MaxSize)
	}
	if size <= 0 {
		return ErrEmpty
	}
	return nil
}

// Read consumes at most MaxSize+1 bytes from r and returns the content as a
// data URI. When declaredType is empty or generic the type is sniffed.
func Read(r io.Reader, declaredType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}

	mediaType := normalizeMediaType(declaredType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = normalizeMediaType(http.DetectContentType(data))
	}

	if err := Validate(mediaType, int64(len(data))); err != nil {
		return "", err
	}
	if err := CheckDimensions(data); err != nil {
		return "", err
	}

	return Encode(mediaType, data), nil
}

// CheckDimensions reads only the image header and rejects images wider or
// taller than MaxDimension. Data in no registered format is ErrNotImage.
func CheckDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d pixels (max %dx%d)", ErrTooLarge, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}
	return nil
}

// Encode builds a base64 data URI.
func Encode(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode splits a base64 data URI into its media type and raw bytes.
func Decode(uri string) (string, []byte, error) {
	// Format: data:image/png;base64,iVBORw0KGgo...
	content, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidURI)
	}

	metadata, payload, ok := strings.Cut(content, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma separator", ErrInvalidURI)
	}

	parts := strings.Split(metadata, ";")
	mediaType := normalizeMediaType(parts[0])
	if !strings.HasPrefix(mediaType, "image/") {
		return "", nil, fmt.Errorf("%w: %q", ErrNotImage, parts[0])
	}

	isBase64 := false
	for _, part := range parts[1:] {
		if part == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: must be base64 encoded", ErrInvalidURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	return mediaType, data, nil
}

func normalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	if mainType == "image/jpg" {
		return "image/jpeg"
	}
	return mainType
}
