package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
)

func (cc *cliContext) withApp(ctx context.Context, warehouse bool, fn func(*app) error) error {
	a, err := newApp(ctx, cc.cfg, cc.logger, warehouse)
	if err != nil {
		return err
	}
	defer a.Close()
	return describe(fn(a))
}

func newExtractCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <request>",
		Short: "Turn a free-text request into a search filter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), false, func(a *app) error {
				f, drift, err := a.extract.Extract(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"filter": f, "drift": drift})
			})
		},
	}
}

type searchOptions struct {
	index   bool
	json    bool
	dryRun  bool
	showSQL bool
}

func newSearchCmd(cc *cliContext) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <request>",
		Short: "Search patents with a free-text request",
		Long: `Extracts a filter from the request, compiles it into a BigQuery statement and runs it.
With --index the returned abstracts replace the similarity index.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), !opts.dryRun, func(a *app) error {
				return runSearch(cmd.Context(), cmd.OutOrStdout(), a.search, a.index, strings.Join(args, " "), opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.index, "index", false, "rebuild the similarity index from the results")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the compiled statement without running it")
	cmd.Flags().BoolVar(&opts.showSQL, "show-sql", false, "print the compiled statement before the results")
	return cmd
}

type planRunner interface {
	Plan(ctx context.Context, text string) (searchuc.Plan, error)
	Run(ctx context.Context, stmt searchuc.Statement) ([]patent.Row, error)
}

type indexBuilder interface {
	Build(ctx context.Context, rows []patent.Row) (indexuc.Stats, error)
}

func runSearch(ctx context.Context, w io.Writer, s planRunner, idx indexBuilder, text string, opts *searchOptions) error {
	plan, err := s.Plan(ctx, text)
	if err != nil {
		return err
	}
	if opts.dryRun {
		_, err := fmt.Fprintln(w, plan.Statement)
		return err
	}

	rows, err := s.Run(ctx, plan.Statement)
	if err != nil {
		return err
	}

	var stats *indexuc.Stats
	if opts.index && len(rows) > 0 {
		st, err := idx.Build(ctx, rows)
		if err != nil {
			return err
		}
		stats = &st
	}

	if opts.json {
		return printJSON(w, map[string]any{
			"filter":    plan.Filter,
			"drift":     plan.Drift,
			"statement": plan.Statement,
			"rows":      rows,
			"indexed":   stats,
		})
	}

	if opts.showSQL {
		fmt.Fprintf(w, "%s\n\n", plan.Statement)
	}
	printRows(w, rows)
	if stats != nil {
		fmt.Fprintf(w, "\nIndexed %d rows (%d dimensions) in %s.\n", stats.Rows, stats.Dimensions, stats.Duration.Round(time.Millisecond))
	}
	return nil
}

type similarOptions struct {
	k         int
	summarize bool
	json      bool
}

func newSimilarCmd(cc *cliContext) *cobra.Command {
	opts := &similarOptions{}
	cmd := &cobra.Command{
		Use:   "similar <text>",
		Short: "Find indexed patents closest to a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.k < 1 {
				return fmt.Errorf("-k must be at least 1")
			}
			return cc.withApp(cmd.Context(), false, func(a *app) error {
				ctx := cmd.Context()
				matches, err := a.index.Query(ctx, strings.Join(args, " "), opts.k)
				if err != nil {
					return err
				}

				summaries := make([]string, len(matches))
				if opts.summarize {
					summarized, err := a.summary.SummarizeMatches(ctx, matches)
					if err != nil {
						return err
					}
					for i := range summarized {
						summaries[i] = summarized[i].Summary
					}
				}

				if opts.json {
					if opts.summarize {
						return printJSON(cmd.OutOrStdout(), summariesJSON(matches, summaries))
					}
					return printJSON(cmd.OutOrStdout(), matches)
				}
				printMatches(cmd.OutOrStdout(), matches, summaries)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&opts.k, "k", "k", 5, "number of neighbours")
	cmd.Flags().BoolVar(&opts.summarize, "summarize", false, "summarize each abstract")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	return cmd
}

func newSummarizeCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [text | -]",
		Short: "Summarize a text; reads stdin when the argument is - or missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" || text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			return cc.withApp(cmd.Context(), false, func(a *app) error {
				summary, err := a.summary.Summarize(cmd.Context(), text)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
				return err
			})
		},
	}
}

// describe turns domain failures into messages a user can act on. Other errors pass through.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var mfe *domain.MalformedFilterError
	switch {
	case errors.As(err, &mfe):
		return fmt.Errorf("could not understand your input as a filter (%s)", mfe.Reason)
	case errors.Is(err, domain.ErrIndexNotFound):
		return errors.New("no similarity index yet: run `patentscope search --index` first")
	case errors.Is(err, domain.ErrIndexCorrupt):
		return errors.New("the similarity index is damaged: rebuild it with `patentscope search --index`")
	case errors.Is(err, domain.ErrSummarization):
		return fmt.Errorf("summarization failed: %w", err)
	case errors.Is(err, domain.ErrTransport):
		switch domain.CollaboratorOf(err) {
		case domain.CollaboratorWarehouse:
			return fmt.Errorf("search backend unavailable: %w", err)
		case domain.CollaboratorStorage:
			return fmt.Errorf("index storage unavailable: %w", err)
		default:
			return fmt.Errorf("language model unavailable: %w", err)
		}
	}
	return err
}
