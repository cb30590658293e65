package core

// errors.go defines the failure taxonomy of a run.
//
// Each type maps to a support code so operators can grep logs and alerts:
//
//	FETCH001  - source unreachable, non-2xx, timeout         (fatal, retried next schedule)
//	FMT001    - payload is not tabular text                  (fatal)
//	EMPTY001  - payload or table is empty                    (fatal)
//	SCHEMA001 - required role has no matching column         (fatal)
//	STORE001  - snapshot store read or write failed          (fatal)
//	NOTIFY001 - notification delivery failed                 (non-fatal)
//	ERR000    - anything else
//
// Fatal errors abort the run before the store is written.

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError is returned when the remote source cannot be retrieved.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FormatError is returned when the payload is not valid tabular text.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid tabular payload: %s: %v", e.Reason, e.Err)
	}
	return "invalid tabular payload: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// EmptyPayloadError is returned when there is nothing to compare: an empty
// body, or a table with a header and no data rows.
type EmptyPayloadError struct {
	Reason string
}

func (e *EmptyPayloadError) Error() string {
	return "empty payload: " + e.Reason
}

// SchemaResolutionError lists the required roles that matched no column,
// along with every normalized column name that was available.
type SchemaResolutionError struct {
	Missing   []Role
	Available []string
}

func (e *SchemaResolutionError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		missing[i] = string(r)
	}
	return fmt.Sprintf("missing required roles: %s (available columns: %s)",
		strings.Join(missing, ", "), quoteList(e.Available))
}

// StoreError wraps a snapshot store failure.
type StoreError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("snapshot store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotificationError wraps a delivery failure. It never aborts a run.
type NotificationError struct {
	Records int
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %d new records: %v", e.Records, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// UserMessage provides operator-facing error information.
type UserMessage struct {
	Code    string // Support reference
	Message string // What happened
	Action  string // What to do about it
}

// MapError returns the operator-facing message for err.
func MapError(err error) UserMessage {
	var (
		fetchErr  *FetchError
		formatErr *FormatError
		emptyErr  *EmptyPayloadError
		schemaErr *SchemaResolutionError
		storeErr  *StoreError
		notifyErr *NotificationError
	)

	switch {
	case err == nil:
		return UserMessage{}
	case errors.Is(err, ErrNoSnapshot):
		return UserMessage{
			Code:    "NOSNAP001",
			Message: "No baseline has been saved yet",
			Action:  "Run `ceespwatch run` once to establish it",
		}
	case errors.As(err, &schemaErr):
		return UserMessage{
			Code:    "SCHEMA001",
			Message: "The remote table no longer has a column for a required field",
			Action:  "Run `ceespwatch check` and update the role rules",
		}
	case errors.As(err, &fetchErr):
		return UserMessage{
			Code:    "FETCH001",
			Message: "The remote source could not be retrieved",
			Action:  "Nothing to do; the next scheduled run retries",
		}
	case errors.As(err, &formatErr):
		return UserMessage{
			Code:    "FMT001",
			Message: "The remote source did not return tabular data",
			Action:  "Check SOURCE_URL still points at the CSV export",
		}
	case errors.As(err, &emptyErr):
		return UserMessage{
			Code:    "EMPTY001",
			Message: "The remote source returned no rows",
			Action:  "The baseline was kept; set ALLOW_EMPTY_TABLE if this is expected",
		}
	case errors.As(err, &storeErr):
		return UserMessage{
			Code:    "STORE001",
			Message: "The snapshot store could not be read or written",
			Action:  "Check STORE_DRIVER and STORE_PATH / DATABASE_URL",
		}
	case errors.As(err, &notifyErr):
		return UserMessage{
			Code:    "NOTIFY001",
			Message: "New records were found but the notification failed",
			Action:  "Check the notifier endpoint; the baseline was updated",
		}
	default:
		return UserMessage{
			Code:    "ERR000",
			Message: "An unexpected error occurred",
			Action:  "Check the logs for the original error",
		}
	}
}

// ErrorCode returns the support code for err, or "" for nil.
func ErrorCode(err error) string {
	return MapError(err).Code
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var notifyErr *NotificationError
	return !errors.As(err, &notifyErr)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
