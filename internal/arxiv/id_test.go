package arxiv

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIDValid(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2310.06825", "2310.06825"},
		{"2310.06825v1", "2310.06825v1"},
		{"1234.56789", "1234.56789"},
		{"https://arxiv.org/abs/2310.06825", "2310.06825"},
		{"http://arxiv.org/abs/2310.06825v2", "2310.06825v2"},
		{"https://arxiv.org/pdf/1234.56789.pdf", "1234.56789"},
		{"http://arxiv.org/pdf/1234.56789v3.pdf", "1234.56789v3"},
		{"https://arxiv.org/pdf/2310.06825", "2310.06825"},
		{"hep-th/0101001", "hep-th/0101001"},
		{"math.GT/0309136", "math.GT/0309136"},
		{"cs.AI/0101001", "cs.AI/0101001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ExtractID(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractIDInvalid(t *testing.T) {
	for _, in := range []string{
		"not an id",
		"https://example.com/abs/2310.06825",
		"arxiv.org/abs/2310.06825",
		"123.456",
		"cs.AI/123456",
		"",
		"https://arxiv.org/abs/hep-th/0101001",
		"2310.06825 ",
	} {
		t.Run(in, func(t *testing.T) {
			got, ok := ExtractID(in)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}
}

func TestExtractIDURLRoundTrip(t *testing.T) {
	for _, id := range []string{"2101.00001", "2101.00001v7", "99999.123456"} {
		forms := []string{
			id,
			"https://arxiv.org/abs/" + id,
			"http://arxiv.org/abs/" + id,
			"https://arxiv.org/pdf/" + id,
			fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id),
		}
		for _, f := range forms {
			got, ok := ExtractID(f)
			assert.True(t, ok, f)
			assert.Equal(t, id, got, f)
		}
	}
}
