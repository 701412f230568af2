package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "utm params stripped",
			in:   "https://news.example/a?utm_source=x&utm_medium=rss",
			want: "https://news.example/a",
		},
		{
			name: "named tracking params stripped",
			in:   "https://news.example/a?fbclid=abc&gclid=def&ref=tw&source=feed&mc_cid=1&mc_eid=2",
			want: "https://news.example/a",
		},
		{
			name: "regular params kept",
			in:   "https://news.example/a?page=2&utm_campaign=spring",
			want: "https://news.example/a?page=2",
		},
		{
			name: "fragment cleared",
			in:   "https://news.example/a#comments",
			want: "https://news.example/a",
		},
		{
			name: "www prefix stripped",
			in:   "https://www.news.example/a",
			want: "https://news.example/a",
		},
		{
			name: "trailing slash removed",
			in:   "https://news.example/a/",
			want: "https://news.example/a",
		},
		{
			name: "all variants collapse to one key",
			in:   "https://www.news.example/a/?utm_source=x#top",
			want: "https://news.example/a",
		},
		{
			name: "already clean",
			in:   "https://news.example/a",
			want: "https://news.example/a",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeMalformedPassesThrough(t *testing.T) {
	malformed := "http://%zz malformed"
	assert.Equal(t, malformed, Normalize(malformed))
}

func TestNormalizeVariantsAgree(t *testing.T) {
	a := Normalize("https://x.com/a?utm_source=x")
	b := Normalize("https://www.x.com/a/")
	assert.Equal(t, a, b)
}
