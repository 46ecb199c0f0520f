package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

// ErrorSeverity indicates the severity of an error for UI presentation.
type ErrorSeverity int

const (
	SeverityInfo    ErrorSeverity = iota // User should know, not blocking
	SeverityWarning                      // Degraded functionality
	SeverityError                        // Operation failed, can retry
	SeverityFatal                        // Application must exit
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify converts an arbitrary error into an *Error with kind, severity,
// title and recovery suggestions. Errors that are already categorized are
// returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	// Context errors
	switch {
	case errors.Is(err, context.Canceled):
		return New(KindCancelled, "Request Cancelled", err)

	case errors.Is(err, ErrUserCancelled):
		return New(KindCancelled, "Cancelled", err)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		timeout := New(KindNetworkFailure, "Request Timeout", err)
		timeout.Recovery = []string{"Try again", "Increase the timeout setting"}
		return timeout
	}

	// Network errors
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout := New(KindNetworkFailure, "Request Timeout", err)
		timeout.Recovery = []string{"Try again", "Increase the timeout setting"}
		return timeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		dns := New(KindNetworkFailure, "DNS Lookup Failed", err)
		dns.Recovery = []string{"Check the host name in the URL", "Check your network connection"}
		return dns
	}

	if isTLSError(err) {
		t := New(KindNetworkFailure, "TLS Handshake Failed", err)
		t.Recovery = []string{"Check the server certificate", "Verify the URL scheme"}
		return t
	}

	var opErr *net.OpError
	if (errors.As(err, &opErr) && opErr.Op == "dial") || errors.Is(err, ErrConnectionFailed) {
		conn := New(KindNetworkFailure, "Connection Failed", err)
		conn.Recovery = []string{
			"Check that the server is running",
			"Verify the address and port",
			"Check your network connection",
		}
		return conn
	}

	// Validation errors
	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		v := New(KindValidation, "Validation Error", err)
		v.Detail = validationErr.Message
		return v
	}

	switch {
	case errors.Is(err, ErrInvalidURL):
		return New(KindInvalidInput, "Invalid URL", err)
	case errors.Is(err, ErrUnsupportedMethod):
		return New(KindInvalidInput, "Unsupported Method", err)
	case errors.Is(err, ErrUnreadableBody):
		return New(KindNetworkFailure, "Unreadable Response Body", err)
	case errors.Is(err, ErrWorkspaceNotFound):
		return New(KindInvalidInput, "Workspace Not Found", err)
	case errors.Is(err, ErrRequestNotFound):
		return New(KindInvalidInput, "Request Not Found", err)
	case errors.Is(err, ErrDefaultWorkspace):
		return New(KindForbidden, "Forbidden Operation", err)
	case errors.Is(err, ErrNoSyncPath):
		return New(KindInvalidInput, "No Sync Path", err)
	case errors.Is(err, ErrSyncFileNotFound):
		return New(KindStorage, "Sync File Not Found", err)
	case errors.Is(err, ErrUnsupportedVersion):
		return New(KindCorruptData, "Unsupported Sync File", err)
	case errors.Is(err, ErrNoSnapshot), errors.Is(err, ErrStorageUnavailable):
		return New(KindStorage, "Storage Unavailable", err)
	}

	// Default fallback for unknown errors
	unexpected := New(KindNetworkFailure, "Unexpected Error", err)
	unexpected.Recovery = []string{"Try again"}
	return unexpected
}

func isTLSError(err error) bool {
	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &certErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}
