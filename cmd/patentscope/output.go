package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/kailas-cloud/patentscope/internal/domain/patent"
)

const titleWidth = 60

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func printRows(w io.Writer, rows []patent.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No patents matched.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBLICATION\tDATE\tASSIGNEES\tTITLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.PublicationNumber, r.PublicationDate,
			clip(r.Assignees, 40), clip(r.Title, titleWidth))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d patents.\n", len(rows))
}

func printMatches(w io.Writer, matches []patent.Match, summaries []string) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "The index is empty.")
		return
	}
	for i, m := range matches {
		fmt.Fprintf(w, "[%d] %s  %s  (distance %.4f)\n", i+1, m.Row.PublicationNumber, clip(m.Row.Title, titleWidth), m.Distance)
		if i < len(summaries) && summaries[i] != "" {
			fmt.Fprintf(w, "    %s\n", summaries[i])
		}
	}
}

type summarizedMatch struct {
	patent.Match
	Summary string `json:"summary"`
}

func summariesJSON(matches []patent.Match, summaries []string) []summarizedMatch {
	out := make([]summarizedMatch, len(matches))
	for i, m := range matches {
		out[i] = summarizedMatch{Match: m, Summary: summaries[i]}
	}
	return out
}

// clip shortens s to n runes on one line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
