package capture

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/trafficlens/trafficlens/internal/models"
)

// MaxBodyBytes is the cap on stored body size, measured against the raw
// payload before any base64 encoding. A binary body just under the cap
// therefore stores up to ~4/3 this many characters of base64 text.
// Larger payloads are replaced with a placeholder annotation, never
// silently truncated.
const MaxBodyBytes = 1 << 20

// binaryThreshold is the fraction of invalid UTF-8 bytes above which a
// payload is treated as binary and stored base64-encoded.
const binaryThreshold = 0.2

// DecodeBody decodes a captured payload defensively. Valid UTF-8 is kept
// as text; nearly valid UTF-8 has invalid sequences replaced; binary
// content is base64-encoded and tagged so downstream consumers never
// have to re-sniff the encoding.
func DecodeBody(raw []byte) models.Body {
	if len(raw) == 0 {
		return models.Body{}
	}
	if utf8.Valid(raw) {
		return models.Body{Text: string(raw)}
	}
	if looksBinary(raw) {
		return models.Body{
			Text:     base64.StdEncoding.EncodeToString(raw),
			Encoding: models.BodyEncodingBase64,
		}
	}
	return models.Body{Text: strings.ToValidUTF8(string(raw), "�")}
}

// DecodeBodyCapped applies the storage size cap before decoding.
// Oversized payloads store a placeholder recording the original length.
func DecodeBodyCapped(raw []byte) models.Body {
	if len(raw) > MaxBodyBytes {
		return models.Body{Text: fmt.Sprintf("[response too large: %d bytes]", len(raw))}
	}
	return DecodeBody(raw)
}

func looksBinary(raw []byte) bool {
	invalid := 0
	for i := 0; i < len(raw); {
		if raw[i] == 0 {
			return true
		}
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		i += size
	}
	return float64(invalid)/float64(len(raw)) > binaryThreshold
}
