package hostname

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsDecorations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare", "reddit.com", "reddit.com"},
		{"upper", "Reddit.COM", "reddit.com"},
		{"whitespace", "  reddit.com  ", "reddit.com"},
		{"http scheme", "http://reddit.com", "reddit.com"},
		{"https scheme", "https://reddit.com", "reddit.com"},
		{"www prefix", "www.reddit.com", "reddit.com"},
		{"scheme and www", "https://www.reddit.com", "reddit.com"},
		{"path", "reddit.com/r/golang", "reddit.com"},
		{"query", "reddit.com?utm=x", "reddit.com"},
		{"fragment", "reddit.com#top", "reddit.com"},
		{"port", "reddit.com:8080", "reddit.com"},
		{"everything", "HTTPS://www.Reddit.com:443/r/golang?x=1#y", "reddit.com"},
		{"subdomain kept", "old.reddit.com", "old.reddit.com"},
		{"hyphen label", "my-site.co.uk", "my-site.co.uk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no dot", "localhost"},
		{"too long", strings.Repeat("a", 250) + ".com"},
		{"leading hyphen label", "-bad.com"},
		{"trailing hyphen label", "bad-.com"},
		{"empty label", "a..com"},
		{"underscore", "bad_host.com"},
		{"space inside", "bad host.com"},
		{"scheme only", "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Normalize(tt.input)
			assert.False(t, ok)
		})
	}
}

// Normalizing an already-normalized domain must be a fixed point.
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://www.reddit.com/r/all",
		"News.Ycombinator.com",
		"x.com:443",
		"my-site.co.uk",
	}
	for _, in := range inputs {
		once, ok := Normalize(in)
		require.True(t, ok, in)
		twice, ok := Normalize(once)
		require.True(t, ok, once)
		assert.Equal(t, once, twice)
	}
}

func TestEqual_TreatsWWWAsSame(t *testing.T) {
	assert.True(t, Equal("www.x.com", "x.com"))
	assert.True(t, Equal("X.com", "x.com"))
	assert.False(t, Equal("a.com", "b.com"))
}
