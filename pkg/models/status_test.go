package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingStatus_String(t *testing.T) {
	tests := []struct {
		status ProcessingStatus
		want   string
	}{
		{StatusUnset, "unset"},
		{StatusPending, "pending"},
		{StatusBlocked, "blocked"},
		{StatusDone, "done"},
		{StatusFailed, "failed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestProcessingStatus_IsValid(t *testing.T) {
	tests := []struct {
		status ProcessingStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusBlocked, true},
		{StatusDone, true},
		{StatusFailed, true},
		{StatusUnset, false},
		{ProcessingStatus("scraping"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "ProcessingStatus(%q).IsValid()", string(tt.status))
	}
}

func TestProcessingStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusUnset.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusBlocked.IsTerminal())
	assert.True(t, StatusDone.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestProcessingStatus_Label(t *testing.T) {
	assert.Equal(t, "Checking", StatusPending.Label())
	assert.Equal(t, "Copyright Found", StatusBlocked.Label())
	assert.Equal(t, "Ready", StatusDone.Label())
	assert.Equal(t, "Error", StatusFailed.Label())
	assert.Equal(t, "Idle", StatusUnset.Label())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in     string
		want   ProcessingMode
		wantOK bool
	}{
		{"", ModeText, true},
		{"text", ModeText, true},
		{"json", ModeJSON, true},
		{"JSON", "", false},
		{"xml", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseMode(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseMode(%q)", tt.in)
	}
}
