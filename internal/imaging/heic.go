package imaging

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/jdeng/goheif"
)

var heicBrands = map[string]bool{
	"heic": true,
	"heix": true,
	"heif": true,
	"mif1": true,
	"msf1": true,
}

// IsHEIC reports whether the attachment looks like a HEIC/HEIF image, by
// declared mime type or by the ISO-BMFF ftyp brand in the first bytes.
func IsHEIC(mimeType string, data []byte) bool {
	switch strings.ToLower(mimeType) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	// ftyp box: size(4) "ftyp"(4) brand(4)
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	return heicBrands[string(data[8:12])]
}

// ConvertToJPEG transcodes a HEIC image to JPEG. Callers treat failure as
// non-fatal and keep the original bytes.
func ConvertToJPEG(data []byte) ([]byte, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode heic: %w", err)
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// JPEGFilename swaps a HEIC extension for .jpg.
func JPEGFilename(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range []string{".heic", ".heif"} {
		if strings.HasSuffix(lower, ext) {
			return filename[:len(filename)-len(ext)] + ".jpg"
		}
	}
	return filename + ".jpg"
}
