// Package sink defines the content-emission contract between a protocol
// engine and the producers of response bodies (file handlers, listing
// generators, proxies, streamed computations).
//
// A protocol engine binds a Sink to exactly one in-flight exchange and hands
// it to a producer. The producer finalizes the exchange by calling exactly
// one terminal operation: Content, ContentSource, Listing, Error, SeeOther
// or NotModified. A second terminal operation fails with
// ErrResponseCommitted, because the transport has already committed a
// response.
//
// Sinks are short-lived handles. They are not reusable across exchanges and
// are not meant for concurrent use by multiple producers; the only
// concurrency the contract admits is abort detection, which the transport
// may signal asynchronously through the sink's Aborter.
package sink

// Sink is the base content-delivery capability bound to one exchange.
type Sink interface {
	// Content sends size-known, in-memory content tagged with fi. When
	// needCopy is true the implementation copies data before returning;
	// otherwise the caller guarantees data stays valid until the
	// implementation is done with it, which lets zero-copy transports skip
	// buffering.
	Content(data []byte, fi FileInfo, needCopy bool) error

	// Error finalizes the exchange with an error response. Recognized kinds
	// (see StatusOf) map to their protocol status; anything else maps to a
	// generic failure status. Producers are expected to let failures
	// propagate here rather than handling them locally: the sink is the
	// single authority translating error kinds into response semantics.
	Error(err error) error

	// SeeOther finalizes the exchange with a redirect to url. It signals a
	// successful redirect instruction, not a failure, and is never routed
	// through the error mapping.
	SeeOther(url string) error
}

// AbortedCallback is invoked by the transport at the moment it detects a
// client disconnect. It must not block and must be safe to call from
// whatever goroutine the transport uses for detection.
type AbortedCallback func()

// ServerSink is the sink handed to server-side content producers.
type ServerSink interface {
	Sink

	// ContentSource streams src to the client. The implementation calls
	// src.Stat once before the first byte, decides framing before the first
	// byte (exact length when src.HasContentLength() and src.Size() >= 0,
	// length-independent otherwise), interleaves reads with abort checks,
	// and calls src.Close exactly once on every exit path.
	ContentSource(src DataSource) error

	// Listing renders entries as a directory listing after normalizing them
	// to the canonical order (directories first, lexicographic within a
	// kind). The caller's slice is not mutated.
	Listing(entries Listing) error

	// CheckAborted polls for client disconnection. It returns
	// ErrRequestAborted once the transport has detected an abort and nil
	// otherwise, with no side effect. Long-running producers call it
	// between reads to cooperatively cancel; the resulting error should
	// unwind the producer entirely.
	CheckAborted() error

	// SetAborter registers cb to be invoked when the transport detects an
	// abort, independent of CheckAborted polling. At most one callback is
	// active per exchange; re-registration replaces the previous one.
	SetAborter(cb AbortedCallback)
}

// ClientSink is the sink a content fetcher delivers responses into.
type ClientSink interface {
	Sink

	// NotModified finalizes the exchange as a conditional-request
	// short-circuit: the exchange terminates successfully from the
	// producer's point of view and requires no body. The default behavior
	// is DefaultNotModified; overrides must preserve the same observable
	// outcome.
	NotModified() error
}

// DefaultNotModified is the stock NotModified behavior: it reports the
// short-circuit through the sink's error path with the NotModified
// condition. ClientSink implementations without a protocol-level
// cache-validation response delegate here.
func DefaultNotModified(s Sink) error {
	return s.Error(NotModified("not modified"))
}
