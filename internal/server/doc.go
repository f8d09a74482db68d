// Package server implements the skiff HTTP protocol engine.
//
// The engine owns the transport: it accepts connections, parses requests,
// and detects client disconnects. For each exchange it constructs a
// sink.ServerSink bound to that exchange and hands it to a Handler, which is
// the content producer. Everything the producer needs (framing decisions,
// error-to-status translation, abort propagation) flows through the sink;
// producers never touch the connection.
package server
