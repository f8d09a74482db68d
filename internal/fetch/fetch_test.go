package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiffhttp/skiff/pkg/sink"
)

// canned starts a listener that answers its first connection with a fixed
// response and returns the URL to fetch.
func canned(t *testing.T, response string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()

		// Drain the request head before responding.
		br := bufio.NewReader(c)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" || line == "\n" {
				break
			}
		}
		c.Write([]byte(response))
	}()

	return fmt.Sprintf("http://%s/", ln.Addr().String())
}

// collectSink records the single terminal operation performed on it.
type collectSink struct {
	op       string
	data     []byte
	fi       sink.FileInfo
	err      error
	location string
}

func (s *collectSink) Content(data []byte, fi sink.FileInfo, needCopy bool) error {
	s.op = "content"
	s.data = append([]byte(nil), data...)
	s.fi = fi
	return nil
}

func (s *collectSink) Error(err error) error {
	s.op = "error"
	s.err = err
	return nil
}

func (s *collectSink) SeeOther(url string) error {
	s.op = "seeother"
	s.location = url
	return nil
}

func (s *collectSink) NotModified() error {
	s.op = "notmodified"
	return nil
}

// delegatingSink routes NotModified through the stock behavior instead of
// handling 304 natively.
type delegatingSink struct {
	collectSink
}

func (s *delegatingSink) NotModified() error {
	return sink.DefaultNotModified(s)
}

func TestFetchContent(t *testing.T) {
	url := canned(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/plain\r\n"+
		"Content-Length: 5\r\n"+
		"Last-Modified: Mon, 02 Jan 2006 15:04:05 GMT\r\n"+
		"\r\n"+
		"hello")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "content", cs.op)
	assert.Equal(t, "hello", string(cs.data))
	assert.Equal(t, "text/plain", cs.fi.ContentType)
	assert.Equal(t, 2006, cs.fi.LastModified.Year())
	assert.True(t, cs.fi.Expires.IsZero())
}

func TestFetchChunked(t *testing.T) {
	url := canned(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/plain\r\n"+
		"Transfer-Encoding: chunked\r\n"+
		"\r\n"+
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "content", cs.op)
	assert.Equal(t, "hello world", string(cs.data))
}

func TestFetchBodyToEOF(t *testing.T) {
	url := canned(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/plain\r\n"+
		"\r\n"+
		"until close")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "content", cs.op)
	assert.Equal(t, "until close", string(cs.data))
}

func TestFetchTruncatedBody(t *testing.T) {
	// The server announces 10 bytes but closes after 5; the short body must
	// surface as an error, not as successful content.
	url := canned(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/plain\r\n"+
		"Content-Length: 10\r\n"+
		"\r\n"+
		"hello")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "error", cs.op)
	assert.ErrorIs(t, cs.err, io.ErrUnexpectedEOF)
}

func TestFetchNotModified(t *testing.T) {
	url := canned(t, "HTTP/1.1 304 Not Modified\r\n\r\n")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{
		ModifiedSince: time.Now(),
	}))
	assert.Equal(t, "notmodified", cs.op)
}

func TestFetchNotModifiedDefaultBehavior(t *testing.T) {
	url := canned(t, "HTTP/1.1 304 Not Modified\r\n\r\n")

	// A sink without native 304 handling must observe the same condition
	// through its error path.
	cs := &delegatingSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "error", cs.op)
	assert.True(t, sink.IsNotModified(cs.err))
}

func TestFetchRedirect(t *testing.T) {
	url := canned(t, "HTTP/1.1 303 See Other\r\n"+
		"Location: http://example.com/other\r\n"+
		"\r\n")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "seeother", cs.op)
	assert.Equal(t, "http://example.com/other", cs.location)
}

func TestFetchErrorStatus(t *testing.T) {
	url := canned(t, "HTTP/1.1 404 Not Found\r\n"+
		"Content-Length: 0\r\n"+
		"\r\n")

	cs := &collectSink{}
	require.NoError(t, Fetch(context.Background(), url, cs, Options{}))

	require.Equal(t, "error", cs.op)
	assert.Equal(t, http.StatusNotFound, sink.StatusOf(cs.err))
}

func TestFetchMalformedResponse(t *testing.T) {
	url := canned(t, "garbage\r\n\r\n")

	cs := &collectSink{}
	err := Fetch(context.Background(), url, cs, Options{})
	require.Error(t, err)
	assert.Empty(t, cs.op)
}

func TestFetchRejectsScheme(t *testing.T) {
	cs := &collectSink{}
	err := Fetch(context.Background(), "https://example.com/", cs, Options{})
	require.Error(t, err)
	assert.Empty(t, cs.op)
}

func TestFetchDialFailure(t *testing.T) {
	// Reserve a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	cs := &collectSink{}
	err = Fetch(context.Background(), "http://"+addr+"/", cs, Options{Timeout: 2 * time.Second})
	require.Error(t, err)
	assert.Empty(t, cs.op)
}
