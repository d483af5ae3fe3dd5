package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRanges(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"1,3-5,7", []int{1, 3, 4, 5, 7}},
		{"", []int{}},
		{"  ", []int{}},
		{" 2 , 4 ", []int{2, 4}},
		{"3-3", []int{3}},
		{"5,1-3,2", []int{1, 2, 3, 5}},
		{"1-2,3-4", []int{1, 2, 3, 4}},
		{"1,,2,", []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRanges(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Values())
			assert.Equal(t, len(tt.want), got.Len())
		})
	}
}

func TestParseRangesInvalid(t *testing.T) {
	for _, in := range []string{"0", "-1", "5-3", "a", "1-", "-", "1-2-3", "1.5", "0-2", "2,x"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRanges(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRange), "got %v", err)
		})
	}
}

func TestParseRangesErrorNamesToken(t *testing.T) {
	_, err := ParseRanges("1,9-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"9-4"`)
}

func TestSetLargeRange(t *testing.T) {
	s, err := ParseRanges("1-1000000000")
	require.NoError(t, err)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(999999999))
	assert.False(t, s.Contains(1000000001))
	assert.Equal(t, 1000000000, s.Len())
}

func TestSetContains(t *testing.T) {
	s, err := ParseRanges("2-4,10")
	require.NoError(t, err)
	for n, want := range map[int]bool{1: false, 2: true, 3: true, 4: true, 5: false, 9: false, 10: true, 11: false, 0: false, -3: false} {
		assert.Equal(t, want, s.Contains(n), "contains %d", n)
	}
}

func TestSetString(t *testing.T) {
	s, err := ParseRanges("7, 1, 3-5, 4")
	require.NoError(t, err)
	assert.Equal(t, "1,3-5,7", s.String())
	assert.Equal(t, "", Set{}.String())
	assert.Equal(t, "1-3", NewSet(3, 1, 2, 0, -1).String())
}
