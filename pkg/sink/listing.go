package sink

import "sort"

// ItemType distinguishes directory entries from file entries in a listing.
// Directories order before files.
type ItemType int

const (
	ItemTypeDir ItemType = iota
	ItemTypeFile
)

func (t ItemType) String() string {
	switch t {
	case ItemTypeDir:
		return "dir"
	case ItemTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// ListingItem is one entry of a directory-style enumeration.
type ListingItem struct {
	Name string
	Type ItemType
}

// Less defines the total order over listing items: directories before files,
// lexicographic by name within the same kind.
func (i ListingItem) Less(o ListingItem) bool {
	if i.Type != o.Type {
		return i.Type < o.Type
	}
	return i.Name < o.Name
}

// Listing is an ordered sequence of listing items as produced by a caller.
// Sinks normalize it before serialization but never mutate the caller's
// slice.
type Listing []ListingItem

// Normalize returns a copy of the listing sorted into the canonical order.
func (l Listing) Normalize() Listing {
	out := make(Listing, len(l))
	copy(out, l)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Less(out[b]) })
	return out
}
