package csvsource

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipBOM(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "with BOM", input: append([]byte{0xEF, 0xBB, 0xBF}, "stop_id,stop_name"...), want: "stop_id,stop_name"},
		{name: "without BOM", input: []byte("stop_id"), want: "stop_id"},
		{name: "only BOM", input: []byte{0xEF, 0xBB, 0xBF}, want: ""},
		{name: "partial BOM kept", input: []byte{0xEF, 0xBB, 'a'}, want: string([]byte{0xEF, 0xBB, 'a'})},
		{name: "empty", input: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(skipBOM(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSanitizingReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "ascii", input: []byte("Main St"), want: "Main St"},
		{name: "multibyte", input: []byte("Gare de l’Est, Zürich"), want: "Gare de l’Est, Zürich"},
		{name: "invalid byte", input: []byte{'a', 0x80, 'b'}, want: "a?b"},
		{name: "truncated sequence at end", input: []byte{'a', 0xE2, 0x80}, want: "a??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(&sanitizingReader{r: bytes.NewReader(tt.input)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSanitizingReader_SplitSequence(t *testing.T) {
	input := []byte("Zürich Hbf – Gleis 3")
	got, err := io.ReadAll(&sanitizingReader{r: iotest.OneByteReader(bytes.NewReader(input))})
	require.NoError(t, err)
	assert.Equal(t, string(input), string(got))
}
