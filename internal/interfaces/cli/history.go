package cli

import (
	"time"

	"github.com/spf13/cobra"

	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored predictions (requires postgres or --server)",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryGetCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		q     domain.HistoryQuery
		since string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent predictions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since != "" {
				t, err := parseSince(since, time.Now())
				if err != nil {
					return err
				}
				q.Since = t
			}
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				res, err := b.ListPredictions(cmd.Context(), q)
				if err != nil {
					return err
				}
				return PrintResult(cmd, historyView{res: res})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.Metal, "metal", "", "only predictions with this metal")
	f.StringVar(&q.Ligand, "ligand", "", "only predictions with this ligand")
	f.StringVar(&since, "since", "", "only predictions completed after this RFC 3339 time or duration ago (e.g. 24h)")
	f.IntVar(&q.Limit, "limit", 20, "page size")
	f.IntVar(&q.Offset, "offset", 0, "rows to skip")
	return cmd
}

// parseSince accepts an RFC 3339 timestamp or a duration before now.
func parseSince(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, errors.NewInvalidInputError("--since must be an RFC 3339 time or a positive duration")
}

func newHistoryGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one stored prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(_ *CLIContext, b backend) error {
				r, err := b.GetPrediction(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, recipeView{r: r})
			})
		},
	}
}
