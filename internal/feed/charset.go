package feed

import (
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset is the character encoding used to read a response body
type Charset struct {
	Name     string
	Encoding encoding.Encoding
}

// UTF8 is used whenever a response does not declare a usable charset
var UTF8 = Charset{Name: "UTF-8", Encoding: unicode.UTF8}

// ResolveCharset returns the charset declared by a Content-Type header
// value. A missing or unparsable header, a missing charset parameter and an
// unknown charset all resolve to UTF-8.
func ResolveCharset(contentType string) Charset {
	if contentType == "" {
		return UTF8
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return UTF8
	}

	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return UTF8
	}

	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return UTF8
	}

	name, err := ianaindex.IANA.Name(enc)
	if err != nil || name == "" {
		name = strings.ToUpper(label)
	}
	return Charset{Name: name, Encoding: enc}
}

// NewReader decodes r from the charset into UTF-8
func (c Charset) NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, c.Encoding.NewDecoder())
}
