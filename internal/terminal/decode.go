package terminal

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8Decoder turns a stream of PTY reads into valid UTF-8 text. Invalid
// sequences become U+FFFD; a multi-byte character split across two reads is
// held back until the rest of it arrives.
type utf8Decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newUTF8Decoder() *utf8Decoder {
	return &utf8Decoder{t: unicode.UTF8.NewDecoder()}
}

// decode returns the text decodable from the pending bytes plus p.
func (d *utf8Decoder) decode(p []byte) string {
	return d.run(p, false)
}

// flush decodes whatever is still pending. A truncated trailing sequence
// becomes a single U+FFFD.
func (d *utf8Decoder) flush() string {
	return d.run(nil, true)
}

func (d *utf8Decoder) run(p []byte, atEOF bool) string {
	src := append(d.pending, p...)
	if len(src) == 0 {
		return ""
	}

	// Worst case every byte becomes a three-byte U+FFFD.
	if need := len(src)*3 + utf8.UTFMax; cap(d.dst) < need {
		d.dst = make([]byte, need)
	}
	dst := d.dst[:cap(d.dst)]

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		if err != transform.ErrShortDst || nSrc == 0 && nDst == 0 {
			break
		}
	}

	d.pending = append(d.pending[:0:0], src...)
	if atEOF {
		d.pending = nil
		d.t.Reset()
	}
	return string(out)
}
