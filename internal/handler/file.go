// Package handler contains the content producers served by the engine.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/internal/server"
	"github.com/skiffhttp/skiff/pkg/sink"
	"github.com/skiffhttp/skiff/pkg/source"
)

// FileHandler serves a source.Store over HTTP.
//
// Paths map straight onto store paths. Directories requested without a
// trailing slash redirect to the slashed form so relative links inside
// listings resolve correctly; directories render listings; files stream
// through ContentSource. Conditional requests short-circuit with 304 when
// If-Modified-Since is not older than the entry's modification time.
type FileHandler struct {
	store source.Store
}

// NewFileHandler creates a handler serving content from store.
func NewFileHandler(store source.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) Serve(ctx context.Context, req *server.Request, sn sink.ServerSink) {
	if req.Method != http.MethodGet {
		h.finish(req, sn.Error(sink.NotAllowed("method %s not allowed", req.Method)))
		return
	}

	// The request target may carry a query string; the store only sees the
	// path part.
	rawPath := req.Path
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		rawPath = rawPath[:i]
	}

	// Store lookups use the decoded path; redirect targets keep the
	// client's encoding.
	reqPath, err := decodePath(rawPath)
	if err != nil {
		h.finish(req, sn.Error(sink.NewStatusError(http.StatusBadRequest, "malformed path %s", rawPath)))
		return
	}

	if strings.HasSuffix(reqPath, "/") {
		h.serveDir(ctx, req, sn, rawPath, reqPath)
		return
	}
	h.serveFile(ctx, req, sn, rawPath, reqPath)
}

// decodePath percent-decodes each path segment. An escape that would alter
// the path structure (an encoded slash or a NUL) is rejected.
func decodePath(p string) (string, error) {
	if !strings.Contains(p, "%") {
		return p, nil
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return "", err
		}
		if strings.ContainsAny(decoded, "/\x00") {
			return "", fmt.Errorf("invalid escape in segment %q", seg)
		}
		segments[i] = decoded
	}
	return strings.Join(segments, "/"), nil
}

func (h *FileHandler) serveDir(ctx context.Context, req *server.Request, sn sink.ServerSink, rawPath, reqPath string) {
	entries, err := h.store.List(ctx, reqPath)
	switch {
	case errors.Is(err, source.ErrNotFound):
		h.finish(req, sn.Error(sink.NotFound("%s not found", reqPath)))
	case errors.Is(err, source.ErrNotDirectory):
		// A file requested with a trailing slash; point at the real name.
		h.finish(req, sn.SeeOther(strings.TrimSuffix(rawPath, "/")))
	case err != nil:
		h.finish(req, sn.Error(err))
	default:
		h.finish(req, sn.Listing(entries))
	}
}

func (h *FileHandler) serveFile(ctx context.Context, req *server.Request, sn sink.ServerSink, rawPath, reqPath string) {
	src, err := h.store.Open(ctx, reqPath)
	switch {
	case errors.Is(err, source.ErrIsDirectory):
		h.finish(req, sn.SeeOther(rawPath+"/"))
		return
	case errors.Is(err, source.ErrNotFound):
		h.finish(req, sn.Error(sink.NotFound("%s not found", reqPath)))
		return
	case err != nil:
		h.finish(req, sn.Error(err))
		return
	}

	if notModifiedSince(req.HeaderValue("If-Modified-Since"), src.Stat().LastModified) {
		if cerr := src.Close(); cerr != nil {
			logger.Warn("[%s] close %s: %v", req.ID, src.Name(), cerr)
		}
		h.finish(req, sn.Error(sink.NotModified("%s not modified", reqPath)))
		return
	}

	h.finish(req, sn.ContentSource(src))
}

// finish logs terminal-operation failures. An aborted exchange is routine
// and logged at debug only.
func (h *FileHandler) finish(req *server.Request, err error) {
	switch {
	case err == nil:
	case errors.Is(err, sink.ErrRequestAborted):
		logger.Debug("[%s] client went away: %v", req.ID, err)
	default:
		logger.Warn("[%s] delivery failed: %v", req.ID, err)
	}
}

// notModifiedSince reports whether a conditional request with the given
// If-Modified-Since value can be answered with 304. HTTP dates have second
// precision, so the comparison truncates the entry's modification time. A
// zero modification time means "now" and never matches.
func notModifiedSince(ims string, modified time.Time) bool {
	if ims == "" || modified.IsZero() {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !modified.Truncate(time.Second).After(since)
}
