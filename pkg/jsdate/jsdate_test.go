package jsdate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"with zone suffix", "Tue Apr 23 2024 01:53:24 GMT+0300 (GMT+03:00)", "23-04-24"},
		{"without suffix", "Tue Apr 23 2024 01:53:24", "23-04-24"},
		{"zero padded day", "Mon Jan 01 2024 23:59:59 GMT+0000 (Coordinated Universal Time)", "01-01-24"},
		{"unpadded day", "Mon Jan 1 2024 08:00:00 GMT+0100", "01-01-24"},
		{"trailing space", "Fri Dec 31 1999 12:00:00 ", "31-12-99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DateOf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		" GMT+0300",
		"2024-04-23T01:53:24Z",
		"Tue Apr 23 2024",
		"Tue Foo 23 2024 01:53:24 GMT+0300",
	} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestParseKeepsClock(t *testing.T) {
	got, err := Parse("Tue Apr 23 2024 01:53:24 GMT+0300 (GMT+03:00)")
	require.NoError(t, err)
	assert.Equal(t, "23-04-24 01:53:24", got.Format(NoteStamp))
}
