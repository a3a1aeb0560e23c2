package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxImageBytes = 5 << 20 // 5 MiB inline upload cap
)

var (
	// ErrNotImage is returned when an upload's MIME type is not image/*.
	ErrNotImage = errors.New("chat: only image files can be sent")

	// ErrImageTooLarge is returned when an upload exceeds MaxImageBytes.
	ErrImageTooLarge = fmt.Errorf("chat: image exceeds %d MiB limit", MaxImageBytes>>20)
)

// stickerRanges lists the code point ranges a single-glyph message must fall
// into to be shown as a sticker.
var stickerRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x26FF, Stride: 1}, // miscellaneous symbols
		{Lo: 0x2700, Hi: 0x27BF, Stride: 1}, // dingbats
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1}, // regional indicators
		{Lo: 0x1F300, Hi: 0x1F9FF, Stride: 1}, // pictographs, emoticons, transport, supplemental
		{Lo: 0x1FA00, Hi: 0x1FAFF, Stride: 1}, // chess symbols, symbols and pictographs extended-A
	},
}

// IsSticker reports whether text, once trimmed, is exactly one code point in
// one of the emoji ranges.
func IsSticker(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(trimmed)
	return r != utf8.RuneError && unicode.Is(stickerRanges, r)
}

// ValidateImage checks an upload before it is encoded. An empty contentType
// is sniffed from the data.
func ValidateImage(data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return contentType, ErrNotImage
	}
	if len(data) > MaxImageBytes {
		return contentType, ErrImageTooLarge
	}
	return contentType, nil
}

// ReadImageFile reads an image upload from disk without loading more than
// MaxImageBytes+1 bytes. Oversized files fail with ErrImageTooLarge.
func ReadImageFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() && info.Size() > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

// EncodeDataURL renders data as an inline base64 data URL.
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits an inline data URL into its MIME type and payload
// size. It does not decode the payload.
func DecodeDataURL(url string) (contentType string, size int, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", 0, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", 0, false
	}
	contentType, _, _ = strings.Cut(meta, ";")
	if strings.HasSuffix(meta, ";base64") {
		return contentType, base64.StdEncoding.DecodedLen(len(payload)), true
	}
	return contentType, len(payload), true
}
