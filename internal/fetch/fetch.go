// Package fetch is a small HTTP client that delivers responses into a
// sink.ClientSink. It exists for embedders that consume remote content
// through the same emission contract the server side produces into, so a
// producer written against Sink works unchanged on either end.
package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/pkg/sink"
)

// maxBodySize bounds how much of a response body is buffered before
// delivery. Responses larger than this fail the exchange.
const maxBodySize = 64 << 20

// maxHeaderLines mirrors the server-side parser bound.
const maxHeaderLines = 256

// Options tunes a single fetch.
type Options struct {
	// ModifiedSince, when non-zero, is sent as If-Modified-Since so the
	// origin can answer 304.
	ModifiedSince time.Time

	// Timeout caps the whole exchange, dial included. Zero means no limit
	// beyond the context's own deadline.
	Timeout time.Duration
}

// Fetch performs a GET against rawURL and finalizes cs with exactly one
// terminal operation: 2xx delivers the body through Content, 304 through
// NotModified, 3xx with a Location through SeeOther, anything else through
// Error with the response status. The returned error is whatever the
// terminal operation returned, or the transport failure that prevented one.
func Fetch(ctx context.Context, rawURL string, cs sink.ClientSink, opts Options) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host, err)
	}
	defer c.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	target := u.RequestURI()
	logger.Debug("fetch GET %s%s", u.Host, target)

	if err := writeRequest(c, u.Host, target, opts); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	br := bufio.NewReader(c)
	status, header, err := readResponse(br)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case status >= 200 && status < 300:
		return deliverBody(br, header, cs)

	case status == http.StatusNotModified:
		return cs.NotModified()

	case status >= 300 && status < 400:
		if loc := header["Location"]; loc != "" {
			return cs.SeeOther(loc)
		}
		return cs.Error(sink.NewStatusError(status, "redirect without location"))

	default:
		return cs.Error(sink.NewStatusError(status, "%s returned %d %s",
			u.Host, status, http.StatusText(status)))
	}
}

func writeRequest(w io.Writer, host, target string, opts Options) error {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", target)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("User-Agent: skiff\r\n")
	b.WriteString("Connection: close\r\n")
	if !opts.ModifiedSince.IsZero() {
		fmt.Fprintf(&b, "If-Modified-Since: %s\r\n", opts.ModifiedSince.UTC().Format(http.TimeFormat))
	}
	b.WriteString("\r\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// readResponse parses the status line and headers, leaving br positioned at
// the start of the body.
func readResponse(br *bufio.Reader) (int, map[string]string, error) {
	line, err := readLine(br)
	if err != nil {
		return 0, nil, err
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return 0, nil, fmt.Errorf("malformed status line %q", line)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, nil, fmt.Errorf("malformed status code %q", parts[1])
	}

	header := make(map[string]string)
	for i := 0; ; i++ {
		if i >= maxHeaderLines {
			return 0, nil, fmt.Errorf("too many header lines")
		}

		line, err := readLine(br)
		if err != nil {
			return 0, nil, fmt.Errorf("read header: %w", err)
		}
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, nil, fmt.Errorf("malformed header line %q", line)
		}
		header[textproto.CanonicalMIMEHeaderKey(name)] = strings.TrimSpace(value)
	}

	return status, header, nil
}

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

// deliverBody reads the response body according to its framing and hands it
// to the sink as in-memory content.
func deliverBody(br *bufio.Reader, header map[string]string, cs sink.ClientSink) error {
	var body io.Reader
	declared := int64(-1)

	switch {
	case strings.EqualFold(header["Transfer-Encoding"], "chunked"):
		body = httputil.NewChunkedReader(br)

	case header["Content-Length"] != "":
		n, err := strconv.ParseInt(header["Content-Length"], 10, 64)
		if err != nil || n < 0 {
			return cs.Error(fmt.Errorf("bad content length %q", header["Content-Length"]))
		}
		if n > maxBodySize {
			return cs.Error(fmt.Errorf("response body of %d bytes exceeds limit", n))
		}
		body = io.LimitReader(br, n)
		declared = n

	default:
		// Connection: close framing; the body runs to EOF.
		body = br
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodySize+1))
	if err != nil {
		return cs.Error(fmt.Errorf("read body: %w", err))
	}
	if len(data) > maxBodySize {
		return cs.Error(fmt.Errorf("response body exceeds %d byte limit", maxBodySize))
	}
	if declared >= 0 && int64(len(data)) != declared {
		return cs.Error(fmt.Errorf("truncated body: got %d of %d declared bytes: %w",
			len(data), declared, io.ErrUnexpectedEOF))
	}

	fi := sink.NewFileInfo(header["Content-Type"])
	if t, err := http.ParseTime(header["Last-Modified"]); err == nil {
		fi.LastModified = t
	}
	if t, err := http.ParseTime(header["Expires"]); err == nil {
		fi.Expires = t
	}

	return cs.Content(data, fi, true)
}
