package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/confpapers/fetch"
	"github.com/pevans/confpapers/scraper"
	"github.com/spf13/cobra"
)

func (a *app) formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Print the page format used for each conference and year span.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Nothing is fetched; the client only satisfies the adapters.
			client := fetch.NewClient(a.settings.Transport, a.logger)
			registry, err := scraper.NewDefaultRegistry(client, a.settings.Sites, a.logger)
			if err != nil {
				return fmt.Errorf("failed to build format registry: %w", err)
			}
			a.printFormats(registry)
			return nil
		},
	}
}

func (a *app) printFormats(registry *scraper.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(a.stdout)
	t.AppendHeader(table.Row{"Conference", "Years", "Format", "Site"})

	for _, g := range registry.Generations() {
		site := a.settings.Sites.OpenReviewAPI
		if g.Format != scraper.FormatOpenReview {
			site, _ = a.settings.Sites.Host(g.Conference)
		}
		t.AppendRow(table.Row{g.Conference, formatSpan(g.From, g.To), g.Format, site})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	for _, e := range registry.Exceptions() {
		fmt.Fprintf(a.stdout, "Unsupported: %s %d: %s\n", e.Conference, e.Year, e.Reason)
	}
}
