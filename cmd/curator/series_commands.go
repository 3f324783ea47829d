package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/episode"
	"curator/internal/history"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Inspect and edit series history",
	}
	cmd.AddCommand(newSeriesListCommand(ctx))
	cmd.AddCommand(newSeriesShowCommand(ctx))
	cmd.AddCommand(newSeriesForgetCommand(ctx))
	cmd.AddCommand(newSeriesBeginCommand(ctx))
	return cmd
}

func newSeriesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known series with their latest download",
		RunE: func(cmd *cobra.Command, args []string) error {
			var all []history.SeriesSummary
			err := ctx.withHistory(cmd.Context(), func(tx *history.Tx) error {
				var err error
				all, err = tx.ListSeries()
				return err
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No series recorded")
				return nil
			}
			rows := make([][]string, 0, len(all))
			for _, s := range all {
				latest, quality, when := "-", "-", "-"
				if s.LatestDownloaded != nil {
					latest = s.LatestDownloaded.Identifier.String()
				}
				if s.LatestRelease != nil {
					quality = s.LatestRelease.Quality
					when = formatWhen(s.LatestRelease.DownloadedAt)
				}
				begin := "-"
				if s.Begin != nil {
					begin = s.Begin.String()
				}
				rows = append(rows, []string{s.Name, strconv.Itoa(s.Episodes), latest, quality, when, begin})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Series", "Episodes", "Latest", "Quality", "Downloaded", "Begin"},
				rows,
				1,
			))
			return nil
		},
	}
}

func newSeriesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the episodes and releases recorded for a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				series  *history.Series
				rows    [][]string
				markers []history.SeasonMarker
				waits   []history.TimeframeWait
			)
			err := ctx.withHistory(cmd.Context(), func(tx *history.Tx) error {
				var err error
				series, err = tx.SeriesByName(args[0])
				if err != nil || series == nil {
					return err
				}
				episodes, err := tx.Episodes(series.ID)
				if err != nil {
					return err
				}
				for _, ep := range episodes {
					releases, err := tx.Releases(ep.ID)
					if err != nil {
						return err
					}
					if len(releases) == 0 {
						rows = append(rows, []string{ep.Identifier.String(), formatWhen(ep.FirstSeen), "-", "-", "-"})
						continue
					}
					for _, r := range releases {
						rows = append(rows, []string{ep.Identifier.String(), formatWhen(ep.FirstSeen), r.Title, r.Quality, downloadedLabel(r)})
					}
				}
				if markers, err = tx.SeasonMarkers(series.ID); err != nil {
					return err
				}
				waits, err = tx.TimeframeWaits(series.ID)
				return err
			})
			if err != nil {
				return err
			}
			if series == nil {
				return fmt.Errorf("series %q not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", series.Name)
			if series.Begin != nil {
				fmt.Fprintf(out, "Begins at %s\n", series.Begin)
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(out, []string{"Episode", "First seen", "Release", "Quality", "Downloaded"}, rows))
			}
			for _, m := range markers {
				fmt.Fprintf(out, "Season %d complete: %s (%s)\n", m.Season, yesNo(m.Complete), m.PackTitle)
			}
			for _, w := range waits {
				fmt.Fprintf(out, "Waiting for %s of %s until %s\n", w.Target, w.Identifier, formatWhen(w.Deadline))
			}
			return nil
		},
	}
}

func downloadedLabel(r history.Release) string {
	if !r.Downloaded {
		return "no"
	}
	label := formatWhen(r.DownloadedAt)
	if r.DownloadedProperCount > 0 {
		label += fmt.Sprintf(" (proper %d)", r.DownloadedProperCount)
	}
	return label
}

func newSeriesForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <name> [episode]",
		Short: "Remove a series, or one of its episodes, from history",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed bool
			err := ctx.withHistory(cmd.Context(), func(tx *history.Tx) error {
				var err error
				if len(args) == 1 {
					removed, err = tx.ForgetSeries(args[0])
					return err
				}
				id, err := episode.ParseIdentifier(args[1])
				if err != nil {
					return err
				}
				removed, err = tx.ForgetEpisode(args[0], id.Key())
				return err
			})
			if err != nil {
				return err
			}
			target := strings.Join(args, " ")
			if !removed {
				return fmt.Errorf("%s not found in history", target)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", target)
			return nil
		},
	}
}

func newSeriesBeginCommand(ctx *commandContext) *cobra.Command {
	var clearBegin bool

	cmd := &cobra.Command{
		Use:   "begin <name> [episode]",
		Short: "Set the episode a series starts from",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var begin *episode.Identifier
			switch {
			case clearBegin && len(args) == 1:
			case !clearBegin && len(args) == 2:
				id, err := episode.ParseIdentifier(args[1])
				if err != nil {
					return err
				}
				begin = &id
			default:
				return errors.New("give an episode, or --clear without one")
			}
			err := ctx.withHistory(cmd.Context(), func(tx *history.Tx) error {
				s, err := tx.EnsureSeries(args[0])
				if err != nil {
					return err
				}
				return tx.SetBegin(s.ID, begin)
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if begin == nil {
				fmt.Fprintf(out, "Cleared begin for %s\n", args[0])
			} else {
				fmt.Fprintf(out, "%s begins at %s\n", args[0], begin)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearBegin, "clear", false, "Remove the begin episode")
	return cmd
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
