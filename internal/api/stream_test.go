package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header  string
		size    int64
		want    byteRange
		partial bool
		unsat   bool
	}{
		{"", 10, byteRange{}, false, false},
		{"bytes=0-0", 10, byteRange{0, 1}, true, false},
		{"bytes=0-9", 10, byteRange{0, 10}, true, false},
		{"bytes=3-", 10, byteRange{3, 7}, true, false},
		{"bytes=-4", 10, byteRange{6, 4}, true, false},
		{"bytes=10-", 10, byteRange{}, false, true},
		{"bytes=-0", 10, byteRange{}, false, true},
		{"bytes=-5", 0, byteRange{}, false, true},
		{"bytes=7-3", 10, byteRange{}, false, false},
		{"bytes=99999999999999999999-", 10, byteRange{}, false, false},
		{"bytes=1-2, 4-5", 10, byteRange{}, false, false},
	}
	for _, tt := range tests {
		got, partial, err := parseRange(tt.header, tt.size)
		assert.Equal(t, tt.want, got, tt.header)
		assert.Equal(t, tt.partial, partial, tt.header)
		if tt.unsat {
			assert.ErrorIs(t, err, errUnsatisfiable, tt.header)
		} else {
			assert.NoError(t, err, tt.header)
		}
	}
}
