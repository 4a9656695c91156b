package llm

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var dataPrefix = []byte("data:")

// readDataLines feeds the payload of every complete `data:` line to handle
// until handle returns false or the body ends. Bytes after the last newline
// stay buffered and are never handed out, so a frame split across reads is
// only seen once it is whole.
func readDataLines(body io.Reader, handle func(payload []byte) bool) error {
	r := bufio.NewReaderSize(body, 32*1024)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		payload, ok := dataPayload(bytes.TrimRight(line, "\r\n"))
		if !ok {
			continue
		}
		if !handle(payload) {
			return nil
		}
	}
}

func dataPayload(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))
	return payload, len(payload) > 0
}
