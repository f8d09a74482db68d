package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestListingNormalize verifies the total order: directories before files,
// lexicographic by name within a kind.
func TestListingNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input Listing
		want  Listing
	}{
		{
			name: "mixed kinds",
			input: Listing{
				{Name: "b", Type: ItemTypeFile},
				{Name: "a", Type: ItemTypeDir},
				{Name: "z", Type: ItemTypeDir},
				{Name: "a", Type: ItemTypeFile},
			},
			want: Listing{
				{Name: "a", Type: ItemTypeDir},
				{Name: "z", Type: ItemTypeDir},
				{Name: "a", Type: ItemTypeFile},
				{Name: "b", Type: ItemTypeFile},
			},
		},
		{
			name:  "empty",
			input: Listing{},
			want:  Listing{},
		},
		{
			name: "already sorted",
			input: Listing{
				{Name: "docs", Type: ItemTypeDir},
				{Name: "readme.txt", Type: ItemTypeFile},
			},
			want: Listing{
				{Name: "docs", Type: ItemTypeDir},
				{Name: "readme.txt", Type: ItemTypeFile},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.input.Normalize()
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestListingNormalizeDoesNotMutate verifies the caller's slice is left
// untouched.
func TestListingNormalizeDoesNotMutate(t *testing.T) {
	input := Listing{
		{Name: "b", Type: ItemTypeFile},
		{Name: "a", Type: ItemTypeDir},
	}
	snapshot := make(Listing, len(input))
	copy(snapshot, input)

	_ = input.Normalize()

	require.Equal(t, snapshot, input)
}

func TestItemTypeString(t *testing.T) {
	assert.Equal(t, "dir", ItemTypeDir.String())
	assert.Equal(t, "file", ItemTypeFile.String())
}
