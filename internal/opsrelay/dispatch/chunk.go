package dispatch

import (
	"strings"
	"unicode/utf8"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
)

// Split breaks text into consecutive rune-exact chunks: every chunk
// except possibly the last holds exactly size code points.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = config.DefaultChunkSize
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Accumulator gathers streamed lines into chunks. Each line is
// buffered with its terminator; once the buffer's rune count exceeds
// the chunk size the whole buffer is flushed, so a chunk can run over
// by up to one line.
type Accumulator struct {
	size  int
	buf   strings.Builder
	runes int
	flush func(chunk string)
}

// NewAccumulator creates an accumulator flushing through the given
// callback.
func NewAccumulator(size int, flush func(chunk string)) *Accumulator {
	if size <= 0 {
		size = config.DefaultChunkSize
	}
	return &Accumulator{size: size, flush: flush}
}

// Add appends one line to the buffer, flushing once the buffer grows
// past the chunk size.
func (a *Accumulator) Add(line string) {
	a.buf.WriteString(line)
	a.buf.WriteByte('\n')
	a.runes += utf8.RuneCountInString(line) + 1
	if a.runes > a.size {
		a.emit()
	}
}

// Flush emits any buffered remainder.
func (a *Accumulator) Flush() {
	if a.runes > 0 {
		a.emit()
	}
}

func (a *Accumulator) emit() {
	a.flush(a.buf.String())
	a.buf.Reset()
	a.runes = 0
}
