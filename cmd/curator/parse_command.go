package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/builtins"
	"curator/internal/episode"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	var (
		seriesName   string
		identifiedBy string
		seasonPacks  bool
	)

	cmd := &cobra.Command{
		Use:   "parse <title>",
		Short: "Show how a title is parsed for quality, release attributes and episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			title := args[0]
			tables := cfg.QualityTables()

			rows := [][]string{{"title", title}}
			if seriesName == "" {
				rows = append(rows, []string{"quality", tables.Parse(title).String()})
			} else {
				kind, err := episode.ParseKind(identifiedBy)
				if err != nil {
					return err
				}
				parser, err := episode.NewParser(episode.Options{
					Name:         seriesName,
					IdentifiedBy: kind,
					SeasonPacks:  seasonPacks,
					Tables:       tables,
				})
				if err != nil {
					return err
				}
				res := parser.Parse(title)
				rows = append(rows,
					[]string{"series", seriesName},
					[]string{"valid", yesNo(res.Valid)},
				)
				if !res.Valid {
					rows = append(rows, []string{"reason", res.Reason})
				} else {
					rows = append(rows,
						[]string{"identifier", res.Identifier.String()},
						[]string{"identified by", res.Identifier.Kind.String()},
						[]string{"season pack", yesNo(res.Identifier.SeasonPack)},
						[]string{"special", yesNo(res.Special)},
						[]string{"proper count", strconv.Itoa(res.ProperCount)},
					)
				}
				rows = append(rows, []string{"quality", res.Quality.String()})
			}
			for _, attr := range builtins.ParseRelease(title) {
				rows = append(rows, []string{attr.Field, attr.Value})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&seriesName, "series", "s", "", "Series name to match the title against")
	cmd.Flags().StringVar(&identifiedBy, "identified-by", "", "Force one identifier scheme (ep, date, sequence, id)")
	cmd.Flags().BoolVar(&seasonPacks, "season-packs", false, "Recognise season packs")
	return cmd
}
