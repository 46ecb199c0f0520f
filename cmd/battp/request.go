package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
	"github.com/shhac/battp/internal/requests"
)

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"req"},
	Short:   "Manage and send saved requests",
	Long: `Manage the saved requests of a workspace. Commands act on the current
workspace unless --workspace is given.`,
}

var requestListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List requests in workspace order; > marks the selection",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := targetStore()
		if err != nil {
			return err
		}
		reqs, sel := store.Snapshot()
		return printRequests(cmd.OutOrStdout(), reqs, sel)
	},
}

var requestFavoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := targetStore()
		if err != nil {
			return err
		}
		return printRequests(cmd.OutOrStdout(), slices.Collect(store.Favorites()), store.SelectedID())
	},
}

var requestRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the first few requests of the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := targetStore()
		if err != nil {
			return err
		}
		return printRequests(cmd.OutOrStdout(), slices.Collect(store.Recent()), store.SelectedID())
	},
}

var requestSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Fuzzy-search requests by name, method and URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := targetStore()
		if err != nil {
			return err
		}
		return printRequests(cmd.OutOrStdout(), store.Search(args[0]), store.SelectedID())
	},
}

var requestShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a request (default: the selected one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, r, err := requestArg(args)
		if err != nil {
			return err
		}
		return printRequest(cmd.OutOrStdout(), r)
	},
}

var requestNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a request and select it",
	Long: `Create a request with default values, apply any field flags, and
select it.

Examples:
  battp request new "List users" --url https://api.example.com/users -q page=1
  battp request new --method POST --url https://api.example.com/users -d '{}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := targetStore()
		if err != nil {
			return err
		}
		updates, err := fieldUpdates(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			updates = append(updates, domain.SetName(args[0]))
		}

		r := store.Create()
		if len(updates) > 0 {
			store.Update(r.ID, updates...)
		}
		r, _ = store.Get(r.ID)
		return printRequest(cmd.OutOrStdout(), r)
	},
}

var requestSetCmd = &cobra.Command{
	Use:   "set [id]",
	Short: "Change fields of a request (default: the selected one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, r, err := requestArg(args)
		if err != nil {
			return err
		}
		updates, err := fieldUpdates(cmd)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return fmt.Errorf("nothing to change, see --help for field flags")
		}
		store.Update(r.ID, updates...)
		r, _ = store.Get(r.ID)
		return printRequest(cmd.OutOrStdout(), r)
	},
}

var requestDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a request",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, r, err := requestArg(args)
		if err != nil {
			return err
		}
		store.Delete(r.ID)
		ws, _ := targetWorkspace()
		application.Calls().Forget(ws.ID, r.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", r.Name)
		return nil
	},
}

var requestSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := targetStore()
		if err != nil {
			return err
		}
		id, err := parseRequestID(args[0])
		if err != nil {
			return err
		}
		return store.SelectExisting(id)
	},
}

var requestDuplicateCmd = &cobra.Command{
	Use:   "duplicate [id]",
	Short: "Copy a request next to the original and select the copy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, r, err := requestArg(args)
		if err != nil {
			return err
		}
		dup, _ := store.Duplicate(r.ID)
		return printRequest(cmd.OutOrStdout(), dup)
	},
}

var requestMoveCmd = &cobra.Command{
	Use:   "move <id> <position>",
	Short: "Move a request to a 1-based position in the list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, r, err := requestArg(args[:1])
		if err != nil {
			return err
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 1 {
			return fmt.Errorf("invalid position %q", args[1])
		}
		store.Move(r.ID, pos-1)
		reqs, sel := store.Snapshot()
		return printRequests(cmd.OutOrStdout(), reqs, sel)
	},
}

var requestSendCmd = &cobra.Command{
	Use:   "send [id]",
	Short: "Send a saved request (default: the selected one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := targetWorkspace()
		if err != nil {
			return err
		}
		_, r, err := requestArg(args)
		if err != nil {
			return err
		}

		ctx, stop := interruptible(cmd.Context())
		defer stop()

		res := application.Send(ctx, ws.ID, r.ID)
		if res.Err != nil {
			return res.Err
		}
		return printResponse(cmd.OutOrStdout(), res.Response, wantPretty(cmd))
	},
}

var (
	setName     string
	setMethod   string
	setURL      string
	setBody     string
	setFavorite bool
	setHeaders  []string
	setParams   []string
	unsetHeader []string
	unsetParam  []string
)

func addFieldFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&setName, "name", "", "display name")
	f.StringVarP(&setMethod, "method", "X", "", "HTTP method")
	f.StringVar(&setURL, "url", "", "target URL")
	f.StringVarP(&setBody, "data", "d", "", "request body")
	f.BoolVar(&setFavorite, "favorite", false, "mark or unmark as favorite")
	f.StringArrayVarP(&setHeaders, "header", "H", nil, `set header "Key: Value" (repeatable)`)
	f.StringArrayVarP(&setParams, "query", "q", nil, "set query parameter key=value (repeatable)")
	f.StringArrayVar(&unsetHeader, "unset-header", nil, "remove a header (repeatable)")
	f.StringArrayVar(&unsetParam, "unset-query", nil, "remove a query parameter (repeatable)")
}

// fieldUpdates turns the field flags that were given into updates.
func fieldUpdates(cmd *cobra.Command) ([]domain.Update, error) {
	f := cmd.Flags()
	var updates []domain.Update

	if f.Changed("name") {
		updates = append(updates, domain.SetName(setName))
	}
	if f.Changed("method") {
		m, err := domain.ParseMethod(setMethod)
		if err != nil {
			return nil, apperrors.New(apperrors.KindInvalidInput, "Unsupported Method",
				fmt.Errorf("%w: %q", apperrors.ErrUnsupportedMethod, setMethod))
		}
		updates = append(updates, domain.SetMethod(m))
	}
	if f.Changed("url") {
		updates = append(updates, domain.SetURL(setURL))
	}
	if f.Changed("data") {
		updates = append(updates, domain.SetBody(setBody))
	}
	if f.Changed("favorite") {
		updates = append(updates, domain.SetFavorite(setFavorite))
	}

	headers, err := parseHeaders(setHeaders)
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(headers) {
		updates = append(updates, domain.SetHeader{Key: k, Value: headers[k]})
	}
	params, err := parsePairs(setParams)
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(params) {
		updates = append(updates, domain.SetParam{Key: k, Value: params[k]})
	}
	for _, k := range unsetHeader {
		updates = append(updates, domain.RemoveHeader(k))
	}
	for _, k := range unsetParam {
		updates = append(updates, domain.RemoveParam(k))
	}
	return updates, nil
}

func init() {
	addFieldFlags(requestNewCmd)
	addFieldFlags(requestSetCmd)
	requestSendCmd.Flags().BoolVar(&sendRaw, "raw", false, "print the body exactly as received")

	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestFavoritesCmd)
	requestCmd.AddCommand(requestRecentCmd)
	requestCmd.AddCommand(requestSearchCmd)
	requestCmd.AddCommand(requestShowCmd)
	requestCmd.AddCommand(requestNewCmd)
	requestCmd.AddCommand(requestSetCmd)
	requestCmd.AddCommand(requestDeleteCmd)
	requestCmd.AddCommand(requestSelectCmd)
	requestCmd.AddCommand(requestDuplicateCmd)
	requestCmd.AddCommand(requestMoveCmd)
	requestCmd.AddCommand(requestSendCmd)
}

// targetStore is the request store of the --workspace or current workspace.
func targetStore() (*requests.Store, error) {
	ws, err := targetWorkspace()
	if err != nil {
		return nil, err
	}
	store, ok := application.Workspaces().Requests(ws.ID)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Workspace Not Found",
			fmt.Errorf("%w: %s", apperrors.ErrWorkspaceNotFound, ws.ID))
	}
	return store, nil
}

// requestArg resolves the optional id argument, falling back to the
// selected request.
func requestArg(args []string) (*requests.Store, domain.Request, error) {
	store, err := targetStore()
	if err != nil {
		return nil, domain.Request{}, err
	}

	if len(args) == 0 {
		r, ok := store.Selected()
		if !ok {
			return nil, domain.Request{}, apperrors.New(apperrors.KindInvalidInput, "No Request Selected",
				fmt.Errorf("%w: pass an id or select a request first", apperrors.ErrRequestNotFound))
		}
		return store, r, nil
	}

	id, err := parseRequestID(args[0])
	if err != nil {
		return nil, domain.Request{}, err
	}
	r, ok := store.Get(id)
	if !ok {
		return nil, domain.Request{}, apperrors.New(apperrors.KindInvalidInput, "Request Not Found",
			fmt.Errorf("%w: %d", apperrors.ErrRequestNotFound, id))
	}
	return store, r, nil
}

func parseRequestID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid request id %q", s)
	}
	return id, nil
}
