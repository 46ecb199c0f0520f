package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shhac/battp/internal/domain"
)

var (
	sendMethod  string
	sendHeaders []string
	sendParams  []string
	sendBody    string
	sendRaw     bool
)

var sendCmd = &cobra.Command{
	Use:   "send <url>",
	Short: "Send a one-off HTTP request",
	Long: `Send a request without saving it.

Query parameters given with -q are appended for GET requests only; a body
is sent for any other method.

Examples:
  battp send https://httpbin.org/get -q page=2 -q q=search
  battp send https://httpbin.org/post -X POST -d '{"name":"ada"}'
  battp send https://api.example.com -H "Authorization: Bearer $TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendMethod, "method", "X", string(domain.MethodGet), "HTTP method")
	sendCmd.Flags().StringArrayVarP(&sendHeaders, "header", "H", nil, `header as "Key: Value" (repeatable)`)
	sendCmd.Flags().StringArrayVarP(&sendParams, "query", "q", nil, `query parameter as key=value (repeatable)`)
	sendCmd.Flags().StringVarP(&sendBody, "data", "d", "", "request body")
	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "print the body exactly as received")
}

func runSend(cmd *cobra.Command, args []string) error {
	headers, err := parseHeaders(sendHeaders)
	if err != nil {
		return err
	}
	params, err := parsePairs(sendParams)
	if err != nil {
		return err
	}

	exec := domain.Execution{
		URL:     args[0],
		Method:  domain.Method(strings.ToUpper(sendMethod)),
		Headers: headers,
		Body:    sendBody,
		Params:  params,
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	resp, err := application.Execute(ctx, exec)
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), resp, wantPretty(cmd))
}

// interruptible derives a context cancelled by Ctrl-C, so an in-flight
// call ends as cancelled instead of killing the process mid-write.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

func wantPretty(cmd *cobra.Command) bool {
	return !sendRaw && isTerminal(cmd.OutOrStdout())
}

// parseHeaders turns "Key: Value" strings into a header map. Later entries
// win.
func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		k, v, ok := strings.Cut(h, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// parsePairs turns "key=value" strings into a map. Later entries win.
func parsePairs(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, p := range raw {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
