package livebuffer

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxRecordLine bounds a single record line. Records are a few hundred bytes;
// anything longer is garbage, e.g. a zero-filled tail left by a power loss.
const MaxRecordLine = 64 * 1024

// ErrLineTooLong is returned by LineReader.Next for a line longer than
// MaxRecordLine. The line has been consumed and reading may continue.
var ErrLineTooLong = errors.New("livebuffer: record line too long")

// LineReader splits a buffer file into lines without giving up on the rest
// of the input when one line is overlong.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// Next returns the next line without its line terminator. It returns io.EOF
// once the input is exhausted and ErrLineTooLong for a skipped overlong line.
func (l *LineReader) Next() (string, error) {
	var (
		buf      []byte
		overlong bool
	)
	for {
		chunk, err := l.r.ReadSlice('\n')
		if !overlong {
			if len(buf)+len(chunk) > MaxRecordLine {
				overlong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buf) == 0 && !overlong {
				return "", io.EOF
			}
		case err != nil:
			return "", err
		}
		if overlong {
			return "", ErrLineTooLong
		}
		return strings.TrimRight(string(buf), "\r\n"), nil
	}
}
