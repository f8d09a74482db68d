package server

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strings"
)

// maxHeaderLines bounds request parsing so a misbehaving client cannot feed
// the parser forever.
const maxHeaderLines = 256

// Request is one parsed HTTP request. The engine fills it in before handing
// it to a Handler; producers treat it as read-only.
type Request struct {
	// ID identifies the exchange in logs.
	ID string

	// Method is the HTTP method (GET, HEAD, ...).
	Method string

	// Path is the request target as sent by the client.
	Path string

	// Proto is the HTTP version string, e.g. "HTTP/1.1".
	Proto string

	// Header holds the request headers with canonicalized keys.
	Header map[string]string

	// RemoteAddr is the peer address, for logging.
	RemoteAddr string
}

// HeaderValue returns the value of the named header, or "" when absent.
// Lookup is case-insensitive.
func (r *Request) HeaderValue(name string) string {
	return r.Header[textproto.CanonicalMIMEHeaderKey(name)]
}

// readRequest parses a request line and headers from br. The body, if any,
// is left unread; skiff serves content and has no use for request bodies.
func readRequest(br *bufio.Reader) (*Request, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed request line %q", line)
	}

	req := &Request{
		Method: parts[0],
		Path:   parts[1],
		Proto:  parts[2],
		Header: make(map[string]string),
	}

	for i := 0; ; i++ {
		if i >= maxHeaderLines {
			return nil, fmt.Errorf("too many header lines")
		}

		line, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		req.Header[textproto.CanonicalMIMEHeaderKey(name)] = strings.TrimSpace(value)
	}

	return req, nil
}

// readLine reads one CRLF- (or bare LF-) terminated line.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
