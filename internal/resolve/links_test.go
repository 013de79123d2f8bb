package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var preferredDomains = []string{"parishbulletins.com", "files.ecatholic.com"}

func TestExtractLinks_PreferredFirst(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a href="/docs/flyer.PDF">Flyer</a>
<a href="https://files.ecatholic.com/123/bulletins/20240505.pdf?t=1">Bulletin</a>
<a href="/about">About</a>
<a href="https://www.parishbulletins.com/b/42.pdf">Archive</a>
</body></html>`

	links, err := ExtractLinks("https://stmary.org/bulletins/", []byte(page), preferredDomains)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://files.ecatholic.com/123/bulletins/20240505.pdf?t=1",
		"https://www.parishbulletins.com/b/42.pdf",
		"https://stmary.org/docs/flyer.PDF",
	}, links)
}

func TestExtractLinks_RelativeAndDuplicates(t *testing.T) {
	t.Parallel()

	page := `<a href="current.pdf">1</a><a href="current.pdf">2</a><a href="mailto:x@y.pdf">3</a>`
	links, err := ExtractLinks("https://stjoe.org/parish/bulletin", []byte(page), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://stjoe.org/parish/current.pdf"}, links)
}

func TestExtractLinks_NoPDF(t *testing.T) {
	t.Parallel()

	links, err := ExtractLinks("https://x.org", []byte(`<a href="/news">News</a>`), preferredDomains)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExtractLinks_BadBase(t *testing.T) {
	t.Parallel()

	_, err := ExtractLinks("://bad", []byte(""), nil)
	assert.Error(t, err)
}
