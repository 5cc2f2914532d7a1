package ui

import (
	"bufio"
	"context"
	"io"
)

// lineReader reads lines in a goroutine so a blocked read can be
// abandoned when the context ends.
type lineReader struct {
	lines chan lineResult
	r     *bufio.Reader
	busy  bool
}

type lineResult struct {
	line string
	err  error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{lines: make(chan lineResult, 1), r: bufio.NewReader(r)}
}

func (l *lineReader) readLine(ctx context.Context) (string, error) {
	if !l.busy {
		l.busy = true
		go func() {
			line, err := l.r.ReadString('\n')
			if err == io.EOF && line != "" {
				err = nil
			}
			l.lines <- lineResult{line: line, err: err}
		}()
	}

	select {
	case res := <-l.lines:
		l.busy = false
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
