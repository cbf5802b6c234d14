// Package export derives download names, MIME types and display text for
// URL results and writes finished results to disk.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

var (
	schemePrefix     = regexp.MustCompile(`^https?://`)
	nonFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

const (
	textContentType    = "text/plain; charset=utf-8"
	jsonContentType    = "application/json; charset=utf-8"
	maxBatchDirNameLen = 80
)

// Filename derives the download name for a URL: the leading http:// or
// https:// is stripped, every character outside [A-Za-z0-9.-] becomes '_',
// and _data.json (json mode) or _data.txt (anything else) is appended.
func Filename(url string, mode models.ProcessingMode) string {
	base := nonFilenameChars.ReplaceAllString(schemePrefix.ReplaceAllString(url, ""), "_")
	if mode == models.ModeJSON {
		return base + "_data.json"
	}
	return base + "_data.txt"
}

// ContentType returns the MIME type for a result of the given mode.
func ContentType(mode models.ProcessingMode) string {
	if mode == models.ModeJSON {
		return jsonContentType
	}
	return textContentType
}

// DisplayText formats result data for viewing. JSON that parses is
// re-indented with two spaces; anything else is shown raw.
func DisplayText(result models.UrlResult) string {
	if result.DataType != models.ModeJSON {
		return result.Data
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(result.Data)), "", "  "); err != nil {
		return result.Data
	}
	return buf.String()
}

// WriteResult writes a done result's data to dir/Filename(url, dataType)
// and returns the path written.
func WriteResult(dir string, result models.UrlResult) (string, error) {
	if !result.HasData() {
		return "", fmt.Errorf("result for %s has no exportable data (status %s)", result.URL, result.Status)
	}
	return writeFile(dir, Filename(result.URL, result.DataType), result.Data)
}

// WriteResults writes every done result into dir. Duplicate URLs would share
// a filename, so later copies get a numeric suffix before the extension.
func WriteResults(dir string, results []models.UrlResult) ([]string, error) {
	seen := make(map[string]int, len(results))
	var written []string
	for _, r := range results {
		if !r.HasData() {
			continue
		}
		name := Filename(r.URL, r.DataType)
		seen[name]++
		if n := seen[name]; n > 1 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		path, err := writeFile(dir, name, r.Data)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// BatchDirName is the directory a whole archived batch is exported into.
func BatchDirName(record models.BatchRecord) string {
	label := record.CreatedAt.UTC().Format("20060102-150405") + "_" + record.ID
	return utils.SanitizeFilename(label, maxBatchDirNameLen)
}

func writeFile(dir, name, data string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating export dir %s: %w", utils.ErrFilesystem, dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, path, err)
	}
	return path, nil
}
