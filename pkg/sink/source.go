package sink

import "io"

// SizeUnknown is returned by DataSource.Size when the total length of the
// content is not known ahead of time. Any negative value has the same
// meaning; SizeUnknown is the canonical one.
const SizeUnknown int64 = -1

// DataSource is a readable byte-producing entity with declared size and
// content metadata. It is the streaming counterpart to a literal buffer: a
// ServerSink implementation drives repeated reads against it until exhausted
// or the exchange is aborted.
//
// Ownership: a DataSource handed to ServerSink.ContentSource is exclusively
// owned by that delivery for its duration. The sink calls Close exactly once
// on every exit path (normal completion, producer error, detected abort).
// Producers release underlying resources (file descriptors, network handles)
// in Close and nowhere else.
//
// Read offsets are monotonically non-decreasing across a single delivery.
// A short read (fewer bytes than len(p)) is only permitted at true end of
// data, which is signaled by (0, nil) or io.EOF.
type DataSource interface {
	// Stat returns the content metadata. The sink calls it once, before
	// sending any bytes.
	Stat() FileInfo

	// Read fills p with content bytes starting at offset off and returns the
	// number of bytes read. It never returns more than len(p).
	Read(p []byte, off int64) (int, error)

	// Size returns the exact content length in bytes, or a negative value
	// (SizeUnknown) when the length is not known.
	Size() int64

	// Name identifies the source for diagnostics only.
	Name() string

	// Close releases the source. It is idempotent.
	Close() error

	// HasContentLength reports whether the producer is willing to have the
	// value of Size trusted outright for exact-length framing. It is a
	// producer-declared hint fixed at construction, independent of what Size
	// actually returns; a sink must fall back to streaming framing when it
	// is false, even if Size reports an exact count.
	HasContentLength() bool
}

// BytesSource is a DataSource over an in-memory byte slice. Size is always
// exact and content-length framing is trusted.
type BytesSource struct {
	name string
	fi   FileInfo
	data []byte
}

// NewBytesSource wraps data in a DataSource. The slice is not copied; the
// caller must not mutate it during delivery.
func NewBytesSource(name string, data []byte, fi FileInfo) *BytesSource {
	return &BytesSource{name: name, fi: fi, data: data}
}

func (s *BytesSource) Stat() FileInfo { return s.fi }

func (s *BytesSource) Read(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	return copy(p, s.data[off:]), nil
}

func (s *BytesSource) Size() int64            { return int64(len(s.data)) }
func (s *BytesSource) Name() string           { return s.name }
func (s *BytesSource) Close() error           { return nil }
func (s *BytesSource) HasContentLength() bool { return true }

// ReaderSource adapts a plain io.Reader into a DataSource with unknown size.
// Reads are sequential: the offset argument is checked for monotonicity but
// otherwise ignored, so the source is only usable for a single front-to-back
// delivery, which is exactly what a sink performs.
type ReaderSource struct {
	name string
	fi   FileInfo
	r    io.Reader
	pos  int64
}

// NewReaderSource wraps r in a DataSource. If r implements io.Closer it is
// closed when the source is closed.
func NewReaderSource(name string, r io.Reader, fi FileInfo) *ReaderSource {
	return &ReaderSource{name: name, fi: fi, r: r}
}

func (s *ReaderSource) Stat() FileInfo { return s.fi }

func (s *ReaderSource) Read(p []byte, off int64) (int, error) {
	if off < s.pos {
		return 0, io.ErrUnexpectedEOF
	}
	n, err := s.r.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *ReaderSource) Size() int64  { return SizeUnknown }
func (s *ReaderSource) Name() string { return s.name }

func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		s.r = nopReader{}
		return c.Close()
	}
	return nil
}

func (s *ReaderSource) HasContentLength() bool { return false }

type nopReader struct{}

func (nopReader) Read([]byte) (int, error) { return 0, io.EOF }
