package models

// ProcessingStatus represents where a single URL is in its processing lifecycle
type ProcessingStatus string

const (
	StatusUnset   ProcessingStatus = ""        // Zero value = unset/unknown
	StatusPending ProcessingStatus = "pending" // Policy and content stages still running
	StatusBlocked ProcessingStatus = "blocked" // Policy stage judged scraping not allowed
	StatusDone    ProcessingStatus = "done"    // Content produced
	StatusFailed  ProcessingStatus = "failed"  // A stage failed or the batch was cancelled
)

// String implements fmt.Stringer for logging
func (s ProcessingStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusBlocked, StatusDone, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true once a status can no longer change
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusBlocked, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Label is the short human-readable badge text for the status
func (s ProcessingStatus) Label() string {
	switch s {
	case StatusPending:
		return "Checking"
	case StatusBlocked:
		return "Copyright Found"
	case StatusDone:
		return "Ready"
	case StatusFailed:
		return "Error"
	}
	return "Idle"
}

// ProcessingMode selects which content stage runs and how its output is interpreted
type ProcessingMode string

const (
	ModeText ProcessingMode = "text"
	ModeJSON ProcessingMode = "json"
)

// String implements fmt.Stringer
func (m ProcessingMode) String() string {
	return string(m)
}

// IsValid returns true for the supported modes
func (m ProcessingMode) IsValid() bool {
	return m == ModeText || m == ModeJSON
}

// ParseMode converts user input into a ProcessingMode. Empty input means text.
func ParseMode(s string) (ProcessingMode, bool) {
	switch ProcessingMode(s) {
	case "", ModeText:
		return ModeText, true
	case ModeJSON:
		return ModeJSON, true
	}
	return "", false
}
