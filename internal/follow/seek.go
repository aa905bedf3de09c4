package follow

import (
	"bufio"
	"fmt"
	"io"
)

const initialChunkSize = 8192

// lastLines reads r to EOF through a ring of capacity n and returns the
// retained lines oldest-to-newest plus the total bytes consumed. Each line
// keeps its trailing newline; a final unterminated line counts as a line.
// Memory stays bounded by n lines regardless of input size.
func lastLines(r io.Reader, n int) ([][]byte, int64, error) {
	ring := NewRing[[]byte](n)
	br := bufio.NewReader(r)
	var consumed int64
	for {
		line, err := br.ReadBytes('\n')
		consumed += int64(len(line))
		if len(line) > 0 {
			ring.Push(line)
		}
		if err == io.EOF {
			return ring.Drain(), consumed, nil
		}
		if err != nil {
			return nil, consumed, fmt.Errorf("follow: read: %w", err)
		}
	}
}

// lastBytes reads r to EOF through a ring of fixed-size chunks and returns
// the chunks holding the final n bytes, trimmed so their total is at most n,
// plus the total bytes consumed. Used when the source cannot seek.
func lastBytes(r io.Reader, n int64) ([][]byte, int64, error) {
	ring := NewRing[[]byte](int(n/initialChunkSize) + 2)
	br := bufio.NewReader(r)
	var consumed int64
	for {
		buf := make([]byte, initialChunkSize)
		m, err := io.ReadFull(br, buf)
		if m > 0 {
			consumed += int64(m)
			ring.Push(buf[:m])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, consumed, fmt.Errorf("follow: read: %w", err)
		}
	}

	chunks := ring.Drain()
	var total int64
	for _, c := range chunks {
		total += int64(len(c))
	}
	for len(chunks) > 0 && total-int64(len(chunks[0])) >= n {
		total -= int64(len(chunks[0]))
		chunks = chunks[1:]
	}
	if len(chunks) > 0 && total > n {
		chunks[0] = chunks[0][total-n:]
	}
	return chunks, consumed, nil
}
