package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		mode     models.ProcessingMode
		expected string
	}{
		{"QueryText", "https://a.b/c?d=1", models.ModeText, "a.b_c_d_1_data.txt"},
		{"QueryJSON", "https://a.b/c?d=1", models.ModeJSON, "a.b_c_d_1_data.json"},
		{"HTTP", "http://example.com/", models.ModeText, "example.com__data.txt"},
		{"NoScheme", "example.com/path-x", models.ModeText, "example.com_path-x_data.txt"},
		{"UppercaseSchemeKept", "HTTPS://x.io", models.ModeText, "HTTPS___x.io_data.txt"},
		{"OnlyLeadingScheme", "https://a.com/https://b", models.ModeText, "a.com_https___b_data.txt"},
		{"UnknownModeIsText", "https://a.com", models.ProcessingMode(""), "a.com_data.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filename(tt.url, tt.mode))
		})
	}
}

func TestFilename_Deterministic(t *testing.T) {
	assert.Equal(t, Filename("https://a.b/c?d=1", models.ModeJSON), Filename("https://a.b/c?d=1", models.ModeJSON))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json; charset=utf-8", ContentType(models.ModeJSON))
	assert.Equal(t, "text/plain; charset=utf-8", ContentType(models.ModeText))
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		name     string
		result   models.UrlResult
		expected string
	}{
		{
			name:     "PrettyJSON",
			result:   models.UrlResult{DataType: models.ModeJSON, Data: `{"title":"T","tags":["a","b"]}`},
			expected: "{\n  \"title\": \"T\",\n  \"tags\": [\n    \"a\",\n    \"b\"\n  ]\n}",
		},
		{
			name:     "InvalidJSONRaw",
			result:   models.UrlResult{DataType: models.ModeJSON, Data: `{"title":`},
			expected: `{"title":`,
		},
		{
			name:     "TextRaw",
			result:   models.UrlResult{DataType: models.ModeText, Data: `{"looks":"like json"}`},
			expected: `{"looks":"like json"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayText(tt.result))
		})
	}
}

func TestWriteResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := models.UrlResult{URL: "https://a.com/x", Status: models.StatusDone, Data: "hello", DataType: models.ModeText}

	path, err := WriteResult(dir, res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.com_x_data.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteResult_NotDone(t *testing.T) {
	_, err := WriteResult(t.TempDir(), models.NewBlockedResult("https://a.com", "no"))
	assert.Error(t, err)
}

func TestWriteResult_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := WriteResult(filepath.Join(file, "sub"), models.UrlResult{URL: "u", Status: models.StatusDone, Data: "d"})
	assert.ErrorIs(t, err, utils.ErrFilesystem)
}

func TestWriteResults_SkipsAndDisambiguates(t *testing.T) {
	dir := t.TempDir()
	results := []models.UrlResult{
		{URL: "https://a.com", Status: models.StatusDone, Data: "first", DataType: models.ModeText},
		models.NewFailedResult("https://b.com", "Failed to scrape and process content.", "r"),
		{URL: "https://a.com", Status: models.StatusDone, Data: "second", DataType: models.ModeText},
		{URL: "https://c.com", Status: models.StatusDone, Data: "{}", DataType: models.ModeJSON},
	}

	written, err := WriteResults(dir, results)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.com_data.txt"),
		filepath.Join(dir, "a.com_data_2.txt"),
		filepath.Join(dir, "c.com_data.json"),
	}, written)

	second, err := os.ReadFile(filepath.Join(dir, "a.com_data_2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))
}

func TestBatchDirName(t *testing.T) {
	rec := models.BatchRecord{ID: "abc-123", CreatedAt: time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)}
	assert.Equal(t, "20240305-070809_abc-123", BatchDirName(rec))
}
