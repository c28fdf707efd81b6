package parser

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidate is one entry in the fixed charset fallback order for Brazilian
// bank files. The first candidate that decodes without error wins.
type candidate struct {
	name string
	enc  encoding.Encoding
}

var candidates = []candidate{
	{"utf-8-sig", unicode.UTF8BOM},
	{"utf-8", unicode.UTF8},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// decodeStatement converts raw statement bytes to a UTF-8 string, trying
// each candidate charset in order.
func decodeStatement(data []byte) (string, string, error) {
	for _, c := range candidates {
		switch c.enc {
		case unicode.UTF8BOM:
			if !bytes.HasPrefix(data, utf8BOM) {
				continue
			}
			stripped := bytes.TrimPrefix(data, utf8BOM)
			if !utf8.Valid(stripped) {
				continue
			}
			return string(stripped), c.name, nil
		case unicode.UTF8:
			if !utf8.Valid(data) {
				continue
			}
			return string(data), c.name, nil
		default:
			decoded, err := c.enc.NewDecoder().Bytes(data)
			if err != nil {
				continue
			}
			return string(decoded), c.name, nil
		}
	}
	return "", "", fmt.Errorf("no supported charset could decode the file")
}
