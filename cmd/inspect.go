package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/inspector"
	"github.com/JakeFAU/sitedigger/internal/source"
)

type inspectOptions struct {
	refresh     bool
	includeHTML bool
	clipboard   bool
	stdin       bool
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect [url]",
		Short: "Inspect one URL and print the report as JSON",
		Long: `Normalizes the URL, serves it from the cache when possible, and otherwise
fetches the page together with its auxiliary probes. Without an argument the
URL is taken from the clipboard (--clipboard) or stdin (--stdin), in that
order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the cache and fetch again")
	cmd.Flags().BoolVar(&opts.includeHTML, "include-html", false, "include the raw markup in the output")
	cmd.Flags().BoolVar(&opts.clipboard, "clipboard", false, "read the URL from the clipboard when no argument is given")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "read the URL from stdin when no argument is given")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string, opts inspectOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	var sources []source.Source
	if len(args) == 1 {
		sources = append(sources, source.Static(args[0]))
	}
	if opts.clipboard {
		sources = append(sources, source.NewClipboard())
	}
	if opts.stdin {
		sources = append(sources, source.NewReader(cmd.InOrStdin()))
	}
	if len(sources) == 0 {
		return errors.New("a url argument, --clipboard, or --stdin is required")
	}

	raw, ok := source.Resolve(cmd.Context(), appInstance.Logger, sources...)
	if !ok {
		return fmt.Errorf("%w: no valid url found in the given sources", inspect.ErrMalformedURL)
	}

	res, err := appInstance.Inspector.Inspect(cmd.Context(), raw, inspector.Options{ForceRefresh: opts.refresh})
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	if !opts.includeHTML {
		res = res.WithoutHTML()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
