package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxRequestLine bounds one request line read from the host.
const maxRequestLine = 1 << 20

// Serve reads line-delimited JSON requests from r and writes one
// response line per request to w. It returns nil on EOF or after a
// shutdown operation, and an error only when the transport itself
// fails. Requests are handled sequentially on the calling goroutine.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRequestLine)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err)}
		} else {
			resp = s.handleRequest(&req)
		}

		if err := writeResponse(out, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if s.quit.Load() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func writeResponse(out *bufio.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		// A response that cannot marshal still must answer the line.
		payload = []byte(`{"success":false,"error":"io: failed to encode response"}`)
	}
	if _, err := out.Write(payload); err != nil {
		return err
	}
	if err := out.WriteByte('\n'); err != nil {
		return err
	}
	return out.Flush()
}
