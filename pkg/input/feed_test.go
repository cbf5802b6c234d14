package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrape-gate/pkg/utils"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>https://example.com</link>
    <description>fixture</description>
    <item><title>One</title><link>https://example.com/one</link></item>
    <item><title>No link</title></item>
    <item><title>Two</title><link> https://example.com/two </link></item>
    <item><title>One again</title><link>https://example.com/one</link></item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <id>urn:uuid:1</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Entry</title>
    <id>urn:uuid:2</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <link href="https://example.org/entry"/>
  </entry>
</feed>`

func TestReadFeedURLs_RSS(t *testing.T) {
	urls, err := ReadFeedURLs(strings.NewReader(rssFixture))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/one",
		"https://example.com/two",
		"https://example.com/one",
	}, urls)
}

func TestReadFeedURLs_Atom(t *testing.T) {
	urls, err := ReadFeedURLs(strings.NewReader(atomFixture))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.org/entry"}, urls)
}

func TestReadFeedURLs_Invalid(t *testing.T) {
	_, err := ReadFeedURLs(strings.NewReader("this is not a feed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestReadFeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte(rssFixture), 0644))

	urls, err := ReadFeedFile(path)
	require.NoError(t, err)
	assert.Len(t, urls, 3)
}

func TestFeedLinks_NilAndEmpty(t *testing.T) {
	assert.Empty(t, FeedLinks(nil))
	assert.Empty(t, FeedLinks(&gofeed.Feed{}))
	assert.Equal(t, []string{"https://x"}, FeedLinks(&gofeed.Feed{Items: []*gofeed.Item{nil, {Links: []string{"https://x"}}}}))
}
