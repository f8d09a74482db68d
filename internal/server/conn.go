package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/pkg/sink"
)

type conn struct {
	server *Server
	conn   net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
}

// serve runs one exchange: parse the request, hand a sink to the handler,
// make sure something terminal happened, then close. Keep-alive is out of
// scope; every response carries Connection: close.
func (c *conn) serve(ctx context.Context) {
	defer c.conn.Close()

	active := c.server.active.Add(1)
	c.server.metrics.SetActiveConnections(active)
	defer func() {
		c.server.metrics.SetActiveConnections(c.server.active.Add(-1))
	}()

	if c.server.cfg.ReadTimeout > 0 {
		// The deadline covers request parsing only; it is cleared before
		// the response so slow streaming deliveries are not cut off.
		_ = c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.ReadTimeout))
	}

	req, err := readRequest(c.br)
	if err != nil {
		if err != io.EOF {
			logger.Debug("Error reading request from %s: %v", c.conn.RemoteAddr(), err)
		}
		return
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	req.ID = uuid.NewString()
	req.RemoteAddr = c.conn.RemoteAddr().String()
	logger.Debug("[%s] %s %s from %s", req.ID, req.Method, req.Path, req.RemoteAddr)

	sn := newHTTPSink(c, req)

	// Watch the transport for client disconnect while the producer runs.
	// The done channel is closed before the connection, so a monitor woken
	// by our own teardown does not register a spurious abort.
	done := make(chan struct{})
	defer close(done)
	go c.watchClient(sn.aborter, done)

	start := time.Now()
	c.server.handler.Serve(ctx, req, sn)

	// The producer is required to invoke exactly one terminal operation;
	// answer for it if it did not.
	if !sn.committed.Load() {
		logger.Warn("[%s] handler finished without a terminal operation", req.ID)
		_ = sn.Error(sink.InternalError("no response produced"))
	}

	_ = c.bw.Flush()

	c.server.metrics.RecordRequest(req.Method, sn.status, time.Since(start))
	c.server.metrics.RecordBytesSent(sn.bytesSent)
	logger.Debug("[%s] finished status=%d bytes=%d in %s",
		req.ID, sn.status, sn.bytesSent, time.Since(start))
}

// watchClient blocks on the connection and trips the abort token when the
// peer goes away before the exchange finishes. Pipelined bytes are read and
// ignored; only a read error counts as a disconnect.
func (c *conn) watchClient(a *sink.Aborter, done <-chan struct{}) {
	var buf [1]byte
	for {
		_, err := c.conn.Read(buf[:])
		select {
		case <-done:
			return
		default:
		}
		if err != nil {
			a.Abort()
			return
		}
	}
}
