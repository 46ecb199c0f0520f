package errors

import "errors"

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrUnsupportedMethod  = errors.New("unsupported HTTP method")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrTimeout            = errors.New("operation timed out")
	ErrUserCancelled      = errors.New("user cancelled operation")
	ErrUnreadableBody     = errors.New("response body is not valid UTF-8 text")
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrRequestNotFound    = errors.New("request not found")
	ErrDefaultWorkspace   = errors.New("the default workspace cannot be deleted")
	ErrSyncFileNotFound   = errors.New("sync file not found")
	ErrUnsupportedVersion = errors.New("unsupported sync file version")
	ErrNoSnapshot         = errors.New("no stored workspace data")
	ErrNoSyncPath         = errors.New("workspace has no sync path")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Kind is the failure category carried across the core/UI boundary.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindNetworkFailure Kind = "network_failure"
	KindCancelled      Kind = "cancelled"
	KindValidation     Kind = "validation_error"
	KindForbidden      Kind = "forbidden_operation"
	KindStorage        Kind = "storage_failure"
	KindCorruptData    Kind = "corrupt_data"
)

// ValidationError represents a field validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Payload is the wire form of an error handed to the presentation layer.
type Payload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error is a categorized failure with presentation metadata.
type Error struct {
	Kind     Kind
	Severity ErrorSeverity
	Title    string   // Short user-facing title
	Detail   string   // Technical detail, best effort
	Recovery []string // Suggested actions
	Err      error
}

// New builds an Error of the given kind with default severity and
// recovery hints. detail defaults to err's message.
func New(kind Kind, title string, err error) *Error {
	e := &Error{
		Kind:     kind,
		Severity: severityFor(kind),
		Title:    title,
		Recovery: recoveryFor(kind),
		Err:      err,
	}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Title != "":
		return e.Title + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Detail != "":
		return e.Title + ": " + e.Detail
	default:
		return e.Title
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Payload converts e to its wire form.
func (e *Error) Payload() Payload {
	return Payload{
		Error:   string(e.Kind),
		Details: e.Detail,
		Message: e.Title,
	}
}

// KindOf reports the category of err, looking through wrapping.
// Errors that were never categorized report "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var v ValidationError
	if errors.As(err, &v) {
		return KindValidation
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func severityFor(kind Kind) ErrorSeverity {
	switch kind {
	case KindCancelled:
		return SeverityInfo
	case KindStorage:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func recoveryFor(kind Kind) []string {
	switch kind {
	case KindInvalidInput:
		return []string{"Check the request fields"}
	case KindNetworkFailure:
		return []string{"Check that the server is reachable", "Send the request again"}
	case KindValidation:
		return []string{"Correct the value and try again"}
	case KindStorage:
		return []string{"Check that the folder exists and is writable"}
	case KindCorruptData:
		return []string{"Check that the file was written by a compatible version"}
	default:
		return []string{}
	}
}
