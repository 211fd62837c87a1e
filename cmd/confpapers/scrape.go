package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/confpapers/fetch"
	"github.com/pevans/confpapers/ledger"
	"github.com/pevans/confpapers/pipeline"
	"github.com/pevans/confpapers/scraper"
	"github.com/spf13/cobra"
)

type scrapeFlags struct {
	output      string
	updateOnly  string
	conferences []string
	full        bool
	parallel    int
	skipScraped bool
	metricsFile string
}

func (a *app) scrapeCmd() *cobra.Command {
	var f scrapeFlags

	cmd := &cobra.Command{
		Use:   "scrape YEARS",
		Short: "Scrape conference years and merge them into the corpus.",
		Long: `Scrape one year (2019) or an inclusive range (2008-2010) for the selected
conferences and merge the new rows into the corpus file.

Years before a conference's first supported listing are skipped. In an
incremental run failed conference years are reported and the rest are
saved. With --full the corpus is rebuilt from scratch and any failure
aborts the run without writing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScrape(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "corpus file (default papers.csv)")
	flags.StringVar(&f.updateOnly, "update-only", "", "write only new rows to this file and leave the corpus untouched")
	flags.StringSliceVarP(&f.conferences, "conference", "c", nil, "conference to scrape: ICML, NeurIPS or ICLR (repeatable, default all)")
	flags.BoolVar(&f.full, "full", false, "rebuild the corpus from scratch; any failure aborts")
	flags.IntVar(&f.parallel, "parallel", 0, "conference years scraped at once (default 4)")
	flags.BoolVar(&f.skipScraped, "skip-scraped", false, "skip conference years the ledger shows as scraped")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")

	return cmd
}

func (a *app) runScrape(cmd *cobra.Command, years string, f scrapeFlags) error {
	from, to, err := parseYears(years)
	if err != nil {
		return configError(err)
	}
	confs, err := parseConferences(f.conferences)
	if err != nil {
		return configError(err)
	}

	s := a.settings
	if cmd.Flags().Changed("output") {
		s.Output = f.output
	}
	if cmd.Flags().Changed("parallel") {
		s.Parallel = f.parallel
	}
	if cmd.Flags().Changed("metrics-file") {
		s.MetricsFile = f.metricsFile
	}
	if err := s.Validate(); err != nil {
		return configError(err)
	}

	metrics := pipeline.NewMetrics()
	client := fetch.NewClient(s.Transport, a.logger)
	client.SetObserver(metrics.ObserveRequest)

	registry, err := scraper.NewDefaultRegistry(client, s.Sites, a.logger)
	if err != nil {
		return fmt.Errorf("failed to build format registry: %w", err)
	}

	store, err := ledger.NewStore(s.Ledger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	p := pipeline.New(registry, store, metrics, &pipeline.Config{Parallel: s.Parallel}, a.logger)
	result, runErr := p.Run(cmd.Context(), pipeline.Request{
		Conferences: confs,
		From:        from,
		To:          to,
		Full:        f.full,
		SkipScraped: f.skipScraped,
		Output:      s.Output,
		UpdateOnly:  f.updateOnly,
	})

	if s.MetricsFile != "" {
		if err := metrics.WriteTextfile(s.MetricsFile); err != nil {
			a.logger.Warn().Err(err).Str("path", s.MetricsFile).Msg("Failed to write metrics")
		}
	}

	if result != nil {
		a.printScrapeSummary(result)
	}
	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrUnreadableCorpus) {
			return dataError(runErr)
		}
		return runErr
	}
	return nil
}

func (a *app) printScrapeSummary(result *pipeline.Result) {
	if problems := append(result.Failed(), unsupported(result.Skipped())...); len(problems) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(a.stdout)
		t.AppendHeader(table.Row{"Conference", "Year", "Status", "Reason"})
		for _, u := range problems {
			t.AppendRow(table.Row{u.Conference, u.Year, u.Status, truncate(u.Err.Error(), 80)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	fmt.Fprintf(a.stdout, "Scraped %d rows from %d conference years, %d new\n",
		result.Scraped, len(result.Succeeded()), len(result.Admitted))
	if result.Written != "" {
		fmt.Fprintf(a.stdout, "Wrote %s\n", result.Written)
	}
}

// unsupported keeps skipped units that carry a reason; units skipped
// because the ledger already had them are not worth a row.
func unsupported(units []pipeline.UnitResult) []pipeline.UnitResult {
	var out []pipeline.UnitResult
	for _, u := range units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}
