package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampWindow(t *testing.T) {
	cases := []struct {
		name                  string
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{"defaults", 0, 0, 0, DefaultPageSize},
		{"negative offset", -5, 10, 0, 10},
		{"limit capped", 40, 500, 40, MaxPageSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offset, limit := ClampWindow(tc.offset, tc.limit)
			require.Equal(t, tc.wantOffset, offset)
			require.Equal(t, tc.wantLimit, limit)
		})
	}
}

func TestPaginationFromOffset(t *testing.T) {
	p := PaginationFromOffset(0, 2, 3)
	require.Equal(t, Pagination{Page: 1, PerPage: 2, Total: 3, TotalPages: 2}, p)
	require.True(t, p.HasNext())
	require.Equal(t, 0, p.Offset())

	p = PaginationFromOffset(3, 2, 3)
	require.Equal(t, 2, p.Page)
	require.False(t, p.HasNext())
	require.Equal(t, 2, p.Offset())

	empty := PaginationFromOffset(0, 0, 0)
	require.Equal(t, 0, empty.TotalPages)
	require.False(t, empty.HasNext())
}
