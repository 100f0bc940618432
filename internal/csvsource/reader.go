package csvsource

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newTextReader wraps a feed file so the CSV reader sees neither a leading
// byte order mark nor invalid UTF-8. Invalid bytes are replaced with '?'.
func newTextReader(r io.Reader) io.Reader {
	return &sanitizingReader{r: skipBOM(r)}
}

// skipBOM drops a UTF-8 byte order mark at the start of r. Spreadsheet
// exports on Windows commonly add one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// sanitizingReader replaces invalid UTF-8 sequences while streaming. A
// multi-byte sequence split across reads is carried to the next call.
type sanitizingReader struct {
	r     io.Reader
	carry []byte
}

func (s *sanitizingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.carry)
	s.carry = s.carry[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Replacement never grows the data.
func (s *sanitizingReader) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if data[r] < utf8.RuneSelf {
			data[w] = data[r]
			w++
			r++
			continue
		}
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.carry = append(s.carry, data[r:]...)
			return w
		}
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}
