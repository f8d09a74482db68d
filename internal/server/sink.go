package server

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/pkg/sink"
)

// streamBufSize is the read granularity of the streaming loop. Aborts are
// polled once per buffer, so it also bounds how much is sent after a
// disconnect is detected.
const streamBufSize = 64 * 1024

const serverName = "skiff"

// httpSink is the ServerSink bound to one exchange. It serializes status
// line and headers, frames the body (content-length or chunked), maps
// producer errors to status codes, and drives streaming deliveries against
// the exchange's abort token.
//
// The committed flag is the terminal-once guard: the first terminal
// operation flips it, every later one fails with ErrResponseCommitted.
type httpSink struct {
	c         *conn
	req       *Request
	aborter   *sink.Aborter
	committed atomic.Bool

	// status and bytesSent describe what was announced and sent, for the
	// connection's log line and metrics. Written only by the committing
	// terminal operation.
	status    int
	bytesSent int64
}

func newHTTPSink(c *conn, req *Request) *httpSink {
	return &httpSink{c: c, req: req, aborter: &sink.Aborter{}}
}

// begin claims the exchange for a terminal operation.
func (s *httpSink) begin() bool {
	return s.committed.CompareAndSwap(false, true)
}

// Content delivers an in-memory body with exact-length framing.
//
// The engine writes data to the connection buffer before returning, so the
// needCopy distinction collapses: the caller's buffer is never retained
// either way.
func (s *httpSink) Content(data []byte, fi sink.FileInfo, needCopy bool) error {
	_ = needCopy
	if !s.begin() {
		return sink.ErrResponseCommitted
	}
	if err := s.writeHeader(http.StatusOK, fi, int64(len(data)), false, nil); err != nil {
		return err
	}
	if _, err := s.c.bw.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	s.bytesSent = int64(len(data))
	return s.c.bw.Flush()
}

// ContentSource streams src to the client. Framing is decided before the
// first byte: exact length when the producer vouches for its declared size,
// chunked otherwise. src is closed exactly once on every exit path,
// including rejection of a second terminal operation.
func (s *httpSink) ContentSource(src sink.DataSource) error {
	if !s.begin() {
		if cerr := src.Close(); cerr != nil {
			logger.Warn("[%s] close %s: %v", s.req.ID, src.Name(), cerr)
		}
		return sink.ErrResponseCommitted
	}

	err := s.streamSource(src)
	if cerr := src.Close(); cerr != nil {
		logger.Warn("[%s] close %s: %v", s.req.ID, src.Name(), cerr)
	}
	if sink.IsAborted(err) {
		s.c.server.metrics.RecordAbort()
	}
	return err
}

func (s *httpSink) streamSource(src sink.DataSource) error {
	fi := src.Stat()
	size := src.Size()
	buf := make([]byte, streamBufSize)

	if src.HasContentLength() && size >= 0 {
		return s.streamExact(src, fi, size, buf)
	}
	return s.streamChunked(src, fi, buf)
}

// streamExact announces size up front and transmits exactly that many bytes.
func (s *httpSink) streamExact(src sink.DataSource, fi sink.FileInfo, size int64, buf []byte) error {
	if err := s.writeHeader(http.StatusOK, fi, size, false, nil); err != nil {
		return err
	}

	var off int64
	for off < size {
		if err := s.CheckAborted(); err != nil {
			return err
		}

		want := int64(len(buf))
		if remaining := size - off; remaining < want {
			want = remaining
		}

		n, err := src.Read(buf[:want], off)
		if n > 0 {
			if _, werr := s.c.bw.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write body: %w", werr)
			}
			off += int64(n)
			s.bytesSent += int64(n)
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("read %s at %d: %w", src.Name(), off, err)
		}
		if n == 0 {
			return fmt.Errorf("source %s ended at %d of declared %d bytes: %w",
				src.Name(), off, size, io.ErrUnexpectedEOF)
		}
	}

	return s.c.bw.Flush()
}

// streamChunked uses length-independent framing and stops at the first
// end-of-data the source reports.
func (s *httpSink) streamChunked(src sink.DataSource, fi sink.FileInfo, buf []byte) error {
	if err := s.writeHeader(http.StatusOK, fi, -1, true, nil); err != nil {
		return err
	}

	var off int64
	for {
		if err := s.CheckAborted(); err != nil {
			return err
		}

		n, err := src.Read(buf, off)
		if n > 0 {
			if _, werr := fmt.Fprintf(s.c.bw, "%x\r\n", n); werr != nil {
				return fmt.Errorf("write chunk header: %w", werr)
			}
			if _, werr := s.c.bw.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write chunk: %w", werr)
			}
			if _, werr := s.c.bw.WriteString("\r\n"); werr != nil {
				return fmt.Errorf("write chunk trailer: %w", werr)
			}
			off += int64(n)
			s.bytesSent += int64(n)
			if err := s.c.bw.Flush(); err != nil {
				return fmt.Errorf("flush chunk: %w", err)
			}
		}
		if err == io.EOF || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s at %d: %w", src.Name(), off, err)
		}
	}

	if _, err := s.c.bw.WriteString("0\r\n\r\n"); err != nil {
		return fmt.Errorf("write final chunk: %w", err)
	}
	return s.c.bw.Flush()
}

// Listing renders entries as an HTML index page in canonical order.
func (s *httpSink) Listing(entries sink.Listing) error {
	page := renderListing(s.req.Path, entries.Normalize())
	return s.Content([]byte(page), sink.NewFileInfo("text/html; charset=utf-8"), true)
}

// Error maps err to a status response. A request-aborted error produces no
// response at all: the connection is already gone, so the exchange is just
// marked finished.
func (s *httpSink) Error(err error) error {
	if sink.IsAborted(err) {
		if s.begin() {
			s.status = 0
			s.c.server.metrics.RecordAbort()
		}
		return nil
	}

	if !s.begin() {
		return sink.ErrResponseCommitted
	}

	status := sink.StatusOf(err)
	logger.Debug("[%s] error response %d: %v", s.req.ID, status, err)

	// 304 carries no body by definition.
	if status == http.StatusNotModified {
		if werr := s.writeHeader(status, sink.FileInfo{}, 0, false, nil); werr != nil {
			return werr
		}
		return s.c.bw.Flush()
	}

	body := errorPage(status, err)
	if werr := s.writeHeader(status, sink.NewFileInfo("text/html; charset=utf-8"), int64(len(body)), false, nil); werr != nil {
		return werr
	}
	if _, werr := s.c.bw.WriteString(body); werr != nil {
		return fmt.Errorf("write error body: %w", werr)
	}
	s.bytesSent = int64(len(body))
	return s.c.bw.Flush()
}

// SeeOther finalizes the exchange with a 303 redirect. Redirects are a
// success from the producer's point of view and bypass the error mapping.
func (s *httpSink) SeeOther(url string) error {
	if !s.begin() {
		return sink.ErrResponseCommitted
	}

	body := fmt.Sprintf("<html><body>See <a href=%q>%s</a></body></html>\n",
		url, html.EscapeString(url))
	extra := map[string]string{"Location": url}
	if err := s.writeHeader(http.StatusSeeOther, sink.NewFileInfo("text/html; charset=utf-8"), int64(len(body)), false, extra); err != nil {
		return err
	}
	if _, err := s.c.bw.WriteString(body); err != nil {
		return fmt.Errorf("write redirect body: %w", err)
	}
	s.bytesSent = int64(len(body))
	return s.c.bw.Flush()
}

// CheckAborted polls the exchange's abort token.
func (s *httpSink) CheckAborted() error {
	return s.aborter.Err()
}

// SetAborter registers the transport-side disconnect callback.
func (s *httpSink) SetAborter(cb sink.AbortedCallback) {
	s.aborter.OnAbort(cb)
}

// writeHeader serializes the status line and headers. contentLength is
// ignored when chunked is true. Zero-value FileInfo timestamps are resolved
// here: LastModified zero becomes the current time, Expires zero is omitted.
func (s *httpSink) writeHeader(status int, fi sink.FileInfo, contentLength int64, chunked bool, extra map[string]string) error {
	s.status = status
	w := s.c.bw

	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status)); err != nil {
		return fmt.Errorf("write status line: %w", err)
	}

	now := time.Now().UTC()
	writeHeaderLine(w, "Date", now.Format(http.TimeFormat))
	writeHeaderLine(w, "Server", serverName)

	if status != http.StatusNotModified {
		contentType := fi.ContentType
		if contentType == "" {
			contentType = sink.DefaultContentType
		}
		writeHeaderLine(w, "Content-Type", contentType)

		lastModified := fi.LastModified
		if lastModified.IsZero() {
			lastModified = now
		}
		writeHeaderLine(w, "Last-Modified", lastModified.UTC().Format(http.TimeFormat))

		if !fi.Expires.IsZero() {
			writeHeaderLine(w, "Expires", fi.Expires.UTC().Format(http.TimeFormat))
		}

		if chunked {
			writeHeaderLine(w, "Transfer-Encoding", "chunked")
		} else {
			writeHeaderLine(w, "Content-Length", fmt.Sprintf("%d", contentLength))
		}
	}

	for name, value := range extra {
		writeHeaderLine(w, name, value)
	}

	writeHeaderLine(w, "Connection", "close")

	if _, err := w.WriteString("\r\n"); err != nil {
		return fmt.Errorf("write header end: %w", err)
	}
	return nil
}

func writeHeaderLine(w *bufio.Writer, name, value string) {
	w.WriteString(name)
	w.WriteString(": ")
	w.WriteString(value)
	w.WriteString("\r\n")
}

// renderListing builds an Apache-style index page. Directory entries carry a
// trailing slash.
func renderListing(path string, entries sink.Listing) string {
	title := html.EscapeString(path)

	var b strings.Builder
	fmt.Fprintf(&b, "<html>\n<head><title>Index of %s</title></head>\n<body>\n", title)
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<hr>\n<pre>\n", title)
	b.WriteString("<a href=\"../\">../</a>\n")

	for _, entry := range entries {
		name := entry.Name
		href := url.PathEscape(name)
		if entry.Type == sink.ItemTypeDir {
			name += "/"
			href += "/"
		}
		fmt.Fprintf(&b, "<a href=\"%s\">%s</a>\n", html.EscapeString(href), html.EscapeString(name))
	}

	b.WriteString("</pre>\n<hr>\n</body>\n</html>\n")
	return b.String()
}

// errorPage builds the body for an error response.
func errorPage(status int, err error) string {
	reason := http.StatusText(status)
	return fmt.Sprintf("<html>\n<head><title>%d %s</title></head>\n<body>\n<h1>%d %s</h1>\n<p>%s</p>\n</body>\n</html>\n",
		status, reason, status, reason, html.EscapeString(err.Error()))
}
