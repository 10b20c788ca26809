package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"testing"
)

// PNGWithDimensions returns a tiny PNG whose header claims a w x h canvas.
// Only the header is valid; decoding the pixel data fails.
func PNGWithDimensions(t *testing.T, w, h uint32) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	b := buf.Bytes()

	// 8 byte signature, then IHDR: length(4) type(4) width(4) height(4) ... crc(4).
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}
