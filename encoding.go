package sfquery

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// reencode converts every field value from UTF-8 to enc's charset. A field
// the encoder cannot represent keeps its original value; conversion failures
// never abort the record or the page.
func (r Record) reencode(enc encoding.Encoding) {
	for field, value := range r {
		converted, err := enc.NewEncoder().String(value)
		if err != nil {
			continue
		}
		r[field] = converted
	}
}

// EncodingByName resolves a charset by its IANA/W3C name, e.g. "iso-8859-1"
// or "shift_jis", for use with WithRecordEncoding.
func EncodingByName(name string) (encoding.Encoding, error) {
	return htmlindex.Get(name)
}
