// Package input turns user-supplied text, files and feeds into the ordered
// URL list a batch is built from.
package input

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"scrape-gate/pkg/utils"
)

// ParseURLList splits text on line breaks, trims each line and drops the
// blank ones. Order and duplicates are preserved. No URL validation is done.
func ParseURLList(text string) []string {
	lines := strings.Split(text, "\n")
	urls := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line) // also removes the '\r' of CRLF input
		if trimmed == "" {
			continue
		}
		urls = append(urls, trimmed)
	}
	return urls
}

// ReadText reads an entire stream as URL-list text. The content is returned
// verbatim; it replaces whatever the user had typed before.
func ReadText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading input: %w", utils.ErrFilesystem, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: input is not valid UTF-8", utils.ErrParsing)
	}
	return string(data), nil
}

// ReadFile loads a local file as URL-list text.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()
	return ReadText(f)
}

// JoinURLs renders a URL slice back into line-delimited text.
func JoinURLs(urls []string) string {
	return strings.Join(urls, "\n")
}
