package input

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"

	"scrape-gate/pkg/utils"
)

// FeedLinks extracts item links from an RSS, Atom or JSON feed document.
// Items without a link are skipped; feed order is kept.
func FeedLinks(feed *gofeed.Feed) []string {
	if feed == nil || len(feed.Items) == 0 {
		return []string{}
	}
	urls := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link != "" {
			urls = append(urls, link)
		}
	}
	return urls
}

// ReadFeedURLs parses a feed from r and returns its item links.
func ReadFeedURLs(r io.Reader) ([]string, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: feed document: %w", utils.ErrParsing, err)
	}
	return FeedLinks(feed), nil
}

// ReadFeedFile is ReadFeedURLs for a local file.
func ReadFeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()
	return ReadFeedURLs(f)
}
