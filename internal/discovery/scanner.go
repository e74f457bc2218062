package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// rawEvent is one framed transport event before payload decoding.
type rawEvent struct {
	Name string
	Data []byte
}

// errMalformedBlock marks a block that violated the framing. The scanner
// stays usable after returning it; the caller decides whether to drop the
// block or abort.
var errMalformedBlock = errors.New("malformed event block")

// blockScanner reassembles framed events from a chunked byte stream. A block
// is an "event:" line, a "data:" line and a blank-line terminator; chunk
// boundaries fall anywhere, so partial blocks are buffered until their
// terminator arrives. A partial block still buffered when the stream ends is
// discarded.
type blockScanner struct {
	r   io.Reader
	buf []byte
	err error
}

func newBlockScanner(r io.Reader) *blockScanner {
	return &blockScanner{r: r}
}

// Next returns the next complete event block. It returns io.EOF when the
// stream is exhausted, and errMalformedBlock (wrapped) for a block that does
// not follow the framing; scanning may continue after the latter.
func (s *blockScanner) Next() (rawEvent, error) {
	for {
		if block, ok := s.takeBlock(); ok {
			ev, err := parseBlock(block)
			if err != nil {
				return rawEvent{}, err
			}
			return ev, nil
		}
		if s.err != nil {
			return rawEvent{}, s.err
		}

		chunk := make([]byte, 4096)
		n, err := s.r.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			s.err = err
		}
	}
}

// takeBlock splits the first terminator-delimited block off the buffer.
func (s *blockScanner) takeBlock() ([]byte, bool) {
	for {
		idx := bytes.Index(s.buf, []byte("\n\n"))
		if idx < 0 {
			return nil, false
		}
		block := s.buf[:idx]
		s.buf = s.buf[idx+2:]
		// Stray terminators between blocks produce empty slices; skip them.
		if len(bytes.TrimSpace(block)) == 0 {
			continue
		}
		return block, true
	}
}

func parseBlock(block []byte) (rawEvent, error) {
	var ev rawEvent
	for _, line := range bytes.Split(block, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			ev.Name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			ev.Data = bytes.TrimSpace(line[len("data:"):])
		case len(bytes.TrimSpace(line)) == 0:
			// tolerated
		default:
			return rawEvent{}, fmt.Errorf("%w: unexpected line %q", errMalformedBlock, line)
		}
	}
	if ev.Name == "" {
		return rawEvent{}, fmt.Errorf("%w: missing event line", errMalformedBlock)
	}
	return ev, nil
}
