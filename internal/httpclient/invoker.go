package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

// maxLogBodyLen caps request and response bodies written to debug logs.
const maxLogBodyLen = 2048

// Doer sends a prepared HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient returns the client used for executions. A zero timeout leaves
// latency bounds to the caller's context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Invoker performs single-shot HTTP executions. It holds no per-call state,
// so one Invoker serves any number of concurrent calls.
type Invoker struct {
	client Doer
	logger *slog.Logger
}

// NewInvoker creates an invoker that sends through client.
func NewInvoker(client Doer, logger *slog.Logger) *Invoker {
	if client == nil {
		client = NewClient(0)
	}
	return &Invoker{
		client: client,
		logger: logger,
	}
}

// Invoke performs exec once and returns the normalized response.
//
// Every failure is returned as an *apperrors.Error: invalid input is
// rejected before any network I/O, cancellation of ctx yields a cancelled
// error and no partial response, transport failures are network failures.
// The request is never retried.
func (i *Invoker) Invoke(ctx context.Context, exec domain.Execution) (*domain.Response, error) {
	method, err := domain.ParseMethod(string(exec.Method))
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Unsupported Method",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedMethod, exec.Method))
	}

	target, err := BuildURL(exec.URL, method, exec.Params)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Invalid URL", err)
	}

	// A GET never carries a body, and an empty body is not sent at all.
	var body io.Reader
	if method != domain.MethodGet && exec.Body != "" {
		body = strings.NewReader(exec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), target, body)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Invalid Request",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidURL, err))
	}
	for key, value := range exec.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if strings.EqualFold(key, "Host") {
			req.Host = value
			continue
		}
		req.Header.Set(key, value)
	}

	i.logger.Debug("sending HTTP request",
		slog.String("method", string(method)),
		slog.String("url", target),
		slog.String("body", truncateForLog(exec.Body)),
	)

	start := time.Now()
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, i.fail(ctx, method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, i.fail(ctx, method, target, err)
	}

	text, err := decodeBody(raw, resp.Header)
	if err != nil {
		return nil, i.fail(ctx, method, target, err)
	}

	out := &domain.Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    flattenHeaders(resp.Header),
		Body:       text,
		TimeMS:     elapsed.Milliseconds(),
		Size:       len(text),
	}

	i.logger.Debug("HTTP request completed",
		slog.String("method", string(method)),
		slog.String("url", target),
		slog.Int("status", out.Status),
		slog.Int64("time_ms", out.TimeMS),
		slog.Int("size", out.Size),
		slog.String("response", truncateForLog(out.Body)),
	)

	return out, nil
}

// fail categorizes a transport failure. A done context takes precedence so
// that cancellation is reported as such even when the transport surfaces
// it as a generic read error.
func (i *Invoker) fail(ctx context.Context, method domain.Method, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	e := apperrors.Classify(err)

	level := slog.LevelError
	if e.Kind == apperrors.KindCancelled {
		level = slog.LevelDebug
	}
	i.logger.Log(ctx, level, "HTTP request failed",
		slog.String("method", string(method)),
		slog.String("url", target),
		slog.String("kind", string(e.Kind)),
		slog.Any("error", err),
	)
	return e
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	// resp.Status looks like "299 Custom Phrase".
	if _, phrase, ok := strings.Cut(resp.Status, " "); ok && phrase != "" {
		return phrase
	}
	return "Unknown"
}

// flattenHeaders merges repeated header values into one comma separated
// value, as they would appear folded on the wire.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func truncateForLog(s string) string {
	if len(s) <= maxLogBodyLen {
		return s
	}
	return s[:maxLogBodyLen] + fmt.Sprintf("... (%d bytes total)", len(s))
}
