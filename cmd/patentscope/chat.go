package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/patentscope/internal/domain"
	conv "github.com/kailas-cloud/patentscope/internal/domain/conversation"
	conversationuc "github.com/kailas-cloud/patentscope/internal/usecase/conversation"
)

type chatOptions struct {
	noConfirm bool
	index     bool
}

func newChatCmd(cc *cliContext) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive search: confirm the request, then run it",
		Long: `Reads requests from stdin. Each request is restated by the model and runs only
after you confirm it. Type /reset to start over or /quit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirm := cc.cfg.Chat.ConfirmEnabled() && !opts.noConfirm
			return cc.withApp(cmd.Context(), true, func(a *app) error {
				loop := &chatLoop{
					turns:   a.conversation,
					search:  a.search,
					index:   a.index,
					confirm: confirm,
					build:   opts.index,
				}
				return loop.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&opts.noConfirm, "no-confirm", false, "skip the paraphrase confirmation step")
	cmd.Flags().BoolVar(&opts.index, "index", false, "rebuild the similarity index from each result set")
	return cmd
}

type turner interface {
	Turn(ctx context.Context, sess *conv.Session, text string) (conversationuc.Outcome, error)
}

// chatLoop drives one session from a line-oriented reader.
type chatLoop struct {
	turns   turner
	search  planRunner
	index   indexBuilder
	confirm bool
	build   bool
}

func (l *chatLoop) run(ctx context.Context, in io.Reader, out io.Writer) error {
	sess := conv.New(uuid.NewString(), l.confirm, time.Now().UTC())
	fmt.Fprintln(out, "Describe the patents you are looking for.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			sess.Reset(time.Now().UTC())
			fmt.Fprintln(out, "Starting over. Describe the patents you are looking for.")
			continue
		}

		if err := l.turn(ctx, sess, line, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "! %v\n", describe(err))
			if sess.State() == conv.AwaitingConfirmation && errors.Is(err, domain.ErrTransport) {
				fmt.Fprintln(out, "Reply yes to try again.")
			}
		}
	}
}

func (l *chatLoop) turn(ctx context.Context, sess *conv.Session, line string, out io.Writer) error {
	o, err := l.turns.Turn(ctx, sess, line)
	if o.Reply != "" {
		fmt.Fprintln(out, o.Reply)
	}
	if err != nil {
		// The re-entry reply already asked for a new request.
		if errors.Is(err, domain.ErrMalformedFilter) {
			return nil
		}
		return err
	}
	if o.Plan == nil {
		return nil
	}

	// Accepted: run the plan, then open a fresh request.
	defer sess.Reset(time.Now().UTC())
	rows, err := l.search.Run(ctx, o.Plan.Statement)
	if err != nil {
		return err
	}
	printRows(out, rows)

	if l.build && len(rows) > 0 {
		stats, err := l.index.Build(ctx, rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Indexed %d rows.\n", stats.Rows)
	}
	fmt.Fprintln(out, "Describe another search, or /quit.")
	return nil
}
