package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "prefers main region",
			page: `<html><body><nav>Home | About</nav><main><h1>Title</h1><p>Body   text
				here.</p></main><footer>(c) 2024</footer></body></html>`,
			want: "Title\n\nBody text here.",
		},
		{
			name: "article when no main",
			page: `<html><body><div>sidebar</div><article><p>Story</p></article></body></html>`,
			want: "Story",
		},
		{
			name: "role main",
			page: `<html><body><div>menu</div><div role="main"><p>Core</p></div></body></html>`,
			want: "Core",
		},
		{
			name: "whole body strips script style and chrome",
			page: `<html><head><title>T</title><style>p{}</style></head><body>
				<header>Logo</header>
				<p>One</p><script>var x = "nope";</script>


				<p>Two</p>
			</body></html>`,
			want: "One\n\nTwo",
		},
		{
			name: "empty main falls back to body",
			page: `<html><body><nav>Menu</nav><main></main><p>real article text</p></body></html>`,
			want: "real article text",
		},
		{
			name: "whitespace-only article falls back to body",
			page: `<html><body><article>  <script>x()</script> </article><div>Kept</div></body></html>`,
			want: "Kept",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractContent(tt.page, 5000)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractContentEmpty(t *testing.T) {
	_, err := ExtractContent(`<html><body><script>only()</script>   </body></html>`, 5000)
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestExtractContentTruncates(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("word ", 2000) + "</p></body></html>"

	got, err := ExtractContent(page, 5000)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	body := strings.TrimSuffix(got, TruncationMarker)
	assert.LessOrEqual(t, utf8.RuneCountInString(body), 5000)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héllo"+TruncationMarker, Truncate("héllo wörld", 5))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}
