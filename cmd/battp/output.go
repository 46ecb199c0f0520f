package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// formatSize renders a byte count the way the response pane shows it.
func formatSize(n int) string {
	return humanize.Bytes(uint64(max(n, 0)))
}

// printResponse writes a status line, the headers and the body. JSON bodies
// are indented when pretty is set.
func printResponse(w io.Writer, resp *domain.Response, pretty bool) error {
	if jsonOutput {
		return printJSON(w, resp)
	}

	fmt.Fprintf(w, "%s  %d ms  %s\n", statusLine(resp, isTerminal(w)), resp.TimeMS, formatSize(resp.Size))
	for _, k := range sortedKeys(resp.Headers) {
		fmt.Fprintf(w, "%s: %s\n", k, resp.Headers[k])
	}
	fmt.Fprintln(w)

	body := resp.Body
	if pretty {
		body = resp.PrettyBody()
	}
	fmt.Fprint(w, body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		fmt.Fprintln(w)
	}
	return nil
}

// statusColors are ANSI colours per status class.
var statusColors = map[string]string{
	domain.StatusSuccess:     "\x1b[32m",
	domain.StatusRedirect:    "\x1b[34m",
	domain.StatusClientError: "\x1b[33m",
	domain.StatusServerError: "\x1b[31m",
}

// statusLine renders "200 OK", coloured by status class when color is set.
func statusLine(resp *domain.Response, color bool) string {
	text := fmt.Sprintf("%d %s", resp.Status, resp.StatusText)
	code, ok := statusColors[resp.StatusClass()]
	if !color || !ok {
		return text
	}
	return code + text + "\x1b[0m"
}

// printError writes err for a human, or as the error payload with --json.
func printError(w io.Writer, err error) {
	e, ok := asAppError(err)
	if !ok {
		// Usage and configuration errors never reached the core.
		if jsonOutput {
			_ = printJSON(w, apperrors.Payload{Error: "error", Message: err.Error()})
			return
		}
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	if jsonOutput {
		_ = printJSON(w, e.Payload())
		return
	}

	fmt.Fprintln(w, e.Error())
	for _, hint := range e.Recovery {
		fmt.Fprintf(w, "  - %s\n", hint)
	}
}

func printWorkspaces(w io.Writer, all []domain.Workspace, currentID string) error {
	if jsonOutput {
		return printJSON(w, all)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tID\tSYNC PATH")
	for _, ws := range all {
		marker := ""
		if ws.ID == currentID {
			marker = "*"
		}
		sync := ws.SyncPath
		if sync == "" {
			sync = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, ws.Name, ws.ID, sync)
	}
	return tw.Flush()
}

func printRequests(w io.Writer, reqs []domain.Request, selected *int64) error {
	if jsonOutput {
		return printJSON(w, reqs)
	}
	if len(reqs) == 0 {
		fmt.Fprintln(w, "No requests.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tMETHOD\tNAME\tURL")
	for _, r := range reqs {
		marker := ""
		if selected != nil && *selected == r.ID {
			marker = ">"
		}
		if r.Favorite {
			marker += "★"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", marker, r.ID, r.Method, r.Name, r.URL)
	}
	return tw.Flush()
}

func printRequest(w io.Writer, r domain.Request) error {
	if jsonOutput {
		return printJSON(w, r)
	}

	fmt.Fprintf(w, "%s  (id %d)\n", r.Name, r.ID)
	fmt.Fprintf(w, "%s %s\n", r.Method, r.URL)
	for _, k := range sortedKeys(r.Headers) {
		fmt.Fprintf(w, "  header %s: %s\n", k, r.Headers[k])
	}
	for _, k := range sortedKeys(r.Params) {
		fmt.Fprintf(w, "  param  %s=%s\n", k, r.Params[k])
	}
	if r.Favorite {
		fmt.Fprintln(w, "  favorite")
	}
	if r.Body != "" {
		fmt.Fprintf(w, "\n%s\n", r.Body)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
