package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  Kind
		title string
	}{
		{"cancelled", context.Canceled, KindCancelled, "Request Cancelled"},
		{"user cancelled", ErrUserCancelled, KindCancelled, "Cancelled"},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindNetworkFailure, "Request Timeout"},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, KindNetworkFailure, "DNS Lookup Failed"},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindNetworkFailure, "Connection Failed"},
		{"validation", ValidationError{Field: "name", Message: "too short"}, KindValidation, "Validation Error"},
		{"invalid url", fmt.Errorf("parse: %w", ErrInvalidURL), KindInvalidInput, "Invalid URL"},
		{"default workspace", ErrDefaultWorkspace, KindForbidden, "Forbidden Operation"},
		{"version", ErrUnsupportedVersion, KindCorruptData, "Unsupported Sync File"},
		{"unknown", errors.New("boom"), KindNetworkFailure, "Unexpected Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.title, got.Title)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyKeepsCategorizedErrors(t *testing.T) {
	orig := New(KindStorage, "Save Failed", errors.New("disk full"))
	wrapped := fmt.Errorf("gateway: %w", orig)

	assert.Same(t, orig, Classify(wrapped))
	assert.Equal(t, KindStorage, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindStorage))
}

func TestCancelledIsInfo(t *testing.T) {
	e := Classify(context.Canceled)
	assert.Equal(t, SeverityInfo, e.Severity)
	assert.Equal(t, "info", e.Severity.String())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("create: %w", ValidationError{Message: "x"})))
}

func TestPayload(t *testing.T) {
	e := New(KindNetworkFailure, "Connection Failed", errors.New("dial tcp: refused"))

	assert.Equal(t, Payload{
		Error:   "network_failure",
		Details: "dial tcp: refused",
		Message: "Connection Failed",
	}, e.Payload())
	assert.Equal(t, "Connection Failed: dial tcp: refused", e.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "name: too short", ValidationError{Field: "name", Message: "too short"}.Error())
	assert.Equal(t, "too short", ValidationError{Message: "too short"}.Error())
}
