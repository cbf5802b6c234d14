package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockedResult_HasNoData(t *testing.T) {
	r := NewBlockedResult("https://blocked.com", "Site terms prohibit scraping")

	assert.Equal(t, StatusBlocked, r.Status)
	assert.Equal(t, "Site terms prohibit scraping", r.Reason)
	assert.False(t, r.HasData())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	raw := string(data)
	assert.NotContains(t, raw, `"data"`)
	assert.NotContains(t, raw, `"error"`)
	assert.NotContains(t, raw, `"data_type"`)
}

func TestFailedResult_OmitsEmptyReason(t *testing.T) {
	r := NewFailedResult("https://a.com", "Failed to analyze copyright status.", "")

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"reason"`)
	assert.Contains(t, string(data), `"error":"Failed to analyze copyright status."`)
}

func TestHasData(t *testing.T) {
	assert.True(t, UrlResult{Status: StatusDone, Data: "x"}.HasData())
	assert.False(t, UrlResult{Status: StatusDone}.HasData())
	assert.False(t, UrlResult{Status: StatusFailed, Data: "x"}.HasData())
	assert.False(t, NewPendingResult("https://a.com").HasData())
}

func TestCountStatuses(t *testing.T) {
	results := []UrlResult{
		NewPendingResult("a"),
		NewBlockedResult("b", "r"),
		{URL: "c", Status: StatusDone, Data: "x"},
		{URL: "d", Status: StatusDone, Data: "y"},
	}
	counts := CountStatuses(results)
	assert.Equal(t, 1, counts[StatusPending])
	assert.Equal(t, 1, counts[StatusBlocked])
	assert.Equal(t, 2, counts[StatusDone])
	assert.Equal(t, 0, counts[StatusFailed])

	rec := BatchRecord{Results: results}
	assert.Equal(t, counts, rec.StatusCounts())
}
