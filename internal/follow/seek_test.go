package follow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  []string
	}{
		{"fewer lines than n", "a\nb\n", 10, []string{"a\n", "b\n"}},
		{"exactly n", "a\nb\nc\n", 3, []string{"a\n", "b\n", "c\n"}},
		{"more lines than n", "a\nb\nc\nd\ne\n", 2, []string{"d\n", "e\n"}},
		{"unterminated final line counts", "a\nb\nc", 2, []string{"b\n", "c"}},
		{"zero keeps nothing", "a\nb\n", 0, nil},
		{"empty input", "", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, consumed, err := lastLines(strings.NewReader(tt.input), tt.n)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.input)), consumed)
			var got []string
			for _, l := range lines {
				got = append(got, string(l))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLastBytes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int64
		want  string
	}{
		{"fewer bytes than n", "hello", 10, "hello"},
		{"trims to last n", "hello world", 5, "world"},
		{"zero keeps nothing", "hello", 0, ""},
		{"empty input", "", 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, consumed, err := lastBytes(strings.NewReader(tt.input), tt.n)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.input)), consumed)
			var got strings.Builder
			for _, c := range chunks {
				got.Write(c)
			}
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestLastBytesSpansChunks(t *testing.T) {
	input := strings.Repeat("x", 3*initialChunkSize) + "tail-end"
	n := int64(initialChunkSize + 12)

	chunks, consumed, err := lastBytes(strings.NewReader(input), n)
	require.NoError(t, err)
	assert.Equal(t, int64(len(input)), consumed)

	var got strings.Builder
	for _, c := range chunks {
		got.Write(c)
	}
	assert.Equal(t, int64(got.Len()), n)
	assert.Equal(t, input[int64(len(input))-n:], got.String())
}
