// Package flatfile sniffs and reads comma-delimited source files: text
// encoding, unlabeled index column, per-column dtypes and the in-memory
// record batch handed to the loader.
package flatfile

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// Encoding names reported by DetectEncoding.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-sig"
	EncodingUTF16   = "utf-16"
	EncodingASCII   = "ascii"
	EncodingCP1252  = "windows-1252"
	EncodingLatin1  = "iso-8859-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding returns the best-guess encoding of raw file content.
func DetectEncoding(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		return EncodingUTF16
	case isASCII(data):
		return EncodingASCII
	case utf8.Valid(data):
		return EncodingUTF8
	default:
		return EncodingCP1252
	}
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// encodingFor resolves a name returned by DetectEncoding (or supplied by the
// operator) to a decoder.
func encodingFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case EncodingUTF8, "utf8", EncodingASCII, "us-ascii", "":
		return unicode.UTF8, nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM, nil
	case EncodingUTF16, "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), nil
	case EncodingCP1252, "cp1252":
		return charmap.Windows1252, nil
	case EncodingLatin1, "latin-1", "latin1":
		return charmap.ISO8859_1, nil
	default:
		return nil, domain.ErrValidation("unsupported encoding %q", name)
	}
}

// decode converts data in the named encoding to UTF-8.
func decode(data []byte, name string) ([]byte, error) {
	enc, err := encodingFor(name)
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return nil, err
	}
	return out, nil
}
