package server

import (
	"context"

	"github.com/skiffhttp/skiff/pkg/sink"
)

// Handler produces the response body for one exchange.
//
// Implementations must finalize the exchange by invoking exactly one
// terminal operation on sn (Content, ContentSource, Listing, Error or
// SeeOther). A handler that returns without doing so gets a generic failure
// response emitted by the engine on its behalf. Errors the handler cannot
// translate itself should be passed to sn.Error rather than handled locally;
// the sink owns the error-to-status mapping.
type Handler interface {
	Serve(ctx context.Context, req *Request, sn sink.ServerSink)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request, sn sink.ServerSink)

func (f HandlerFunc) Serve(ctx context.Context, req *Request, sn sink.ServerSink) {
	f(ctx, req, sn)
}
