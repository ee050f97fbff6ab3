package build

import (
	"io"
	"strings"
)

// limitedWriter wraps a writer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err := lw.w.Write(toWrite)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}

// tail keeps the last max bytes of s, where compilers put the errors that
// matter.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "...(truncated)\n" + s[len(s)-max:]
}
