package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrPolicyCheckFailed       = errors.New("policy check failed")       // Copyright/permission stage could not produce a verdict
	ErrContentGenerationFailed = errors.New("content generation failed") // Text or JSON stage failed
	ErrSchemaMismatch          = errors.New("schema mismatch")           // Extracted JSON rejected by the caller's schema
	ErrNoURLs                  = errors.New("no URLs in input")
	ErrConfigValidation        = errors.New("configuration validation error")
	ErrMissingCredential       = errors.New("missing API credential")
	ErrParsing                 = errors.New("parsing error")    // Wraps specific parsing error (JSON, YAML, feed)
	ErrFilesystem              = errors.New("filesystem error") // Wraps os errors
	ErrDatabase                = errors.New("database error")   // Wraps badger errors
	ErrBatchNotFound           = errors.New("batch not found")
)

// Messages shown to users in place of raw backend errors.
const (
	MsgPolicyCheckFailed = "Failed to analyze copyright status."
	MsgTextFailed        = "Failed to scrape and process content."
	MsgJSONFailed        = "Failed to extract JSON content."
	MsgSchemaMismatch    = "Extracted JSON does not match the expected schema."
	MsgCancelled         = "Processing was cancelled."
	MsgUnknown           = "An unknown error occurred."
)

// StageError is a failure of one pipeline stage. Message is the short,
// user-facing text; Err carries a sentinel and usually the backend cause.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a StageError whose chain contains both the sentinel
// and the underlying cause (which may be nil).
func NewStageError(stage, message string, sentinel, cause error) *StageError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &StageError{Stage: stage, Message: message, Err: err}
}

// UserMessage extracts the short message from a StageError anywhere in the
// chain. Anything else yields the generic unknown-error text.
func UserMessage(err error) string {
	var se *StageError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, context.Canceled) {
		return MsgCancelled
	}
	return MsgUnknown
}

// WrapErrorf annotates err with a formatted prefix, keeping it unwrappable.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrSchemaMismatch):
		// Checked before content generation: a mismatch is a content-stage failure too.
		errMsg := err.Error()
		if strings.Contains(errMsg, "invalid JSON") {
			return "Content_InvalidJSON"
		}
		return "Content_SchemaMismatch"
	case errors.Is(err, ErrPolicyCheckFailed):
		if cause := causeCategory(err); cause != "" {
			return "Policy_" + cause
		}
		return "Policy_CheckFailed"
	case errors.Is(err, ErrContentGenerationFailed):
		if cause := causeCategory(err); cause != "" {
			return "Content_" + cause
		}
		return "Content_GenerationFailed"
	case errors.Is(err, ErrNoURLs):
		return "Input_Empty"
	case errors.Is(err, ErrMissingCredential):
		return "Config_MissingCredential"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrBatchNotFound):
		return "Session_BatchNotFound"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "JSON") {
			return "Parsing_JSON"
		}
		if strings.Contains(errMsg, "YAML") {
			return "Parsing_YAML"
		}
		if strings.Contains(errMsg, "feed") {
			return "Parsing_Feed"
		}
		return "Parsing_Other"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	}

	if cause := causeCategory(err); cause != "" {
		return cause
	}
	return "Unknown"
}

// causeCategory classifies the transport-level cause of a backend failure.
func causeCategory(err error) string {
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "429") || strings.Contains(lowerErrMsg, "rate limit") || strings.Contains(lowerErrMsg, "resource_exhausted"):
		return "Backend_RateLimited"
	case strings.Contains(lowerErrMsg, "401") || strings.Contains(lowerErrMsg, "403") || strings.Contains(lowerErrMsg, "api key"):
		return "Backend_Auth"
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return ""
}
