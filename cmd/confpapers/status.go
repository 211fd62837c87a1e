package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/confpapers/corpus"
	"github.com/pevans/confpapers/ledger"
	"github.com/spf13/cobra"
)

type statusFlags struct {
	conference string
	history    bool
	limit      int
}

func (a *app) statusCmd() *cobra.Command {
	var f statusFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest scrape of each conference year from the ledger.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.conference, "conference", "c", "", "only show this conference")
	flags.BoolVar(&f.history, "history", false, "show every recorded run, newest first")
	flags.IntVar(&f.limit, "limit", 50, "maximum rows with --history")

	return cmd
}

func (a *app) runStatus(f statusFlags) error {
	var conf *corpus.Conference
	if f.conference != "" {
		c, err := corpus.ParseConference(f.conference)
		if err != nil {
			return configError(err)
		}
		conf = &c
	}

	store, err := ledger.NewStore(a.settings.Ledger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	var units []ledger.Unit
	if f.history {
		units, err = store.ListUnits(ledger.UnitFilter{Conference: conf, Limit: f.limit})
	} else {
		units, err = store.Latest()
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	if conf != nil && !f.history {
		filtered := units[:0]
		for _, u := range units {
			if u.Conference == *conf {
				filtered = append(filtered, u)
			}
		}
		units = filtered
	}

	if len(units) == 0 {
		fmt.Fprintln(a.stdout, "No scrapes recorded.")
		return nil
	}

	a.printUnits(units)
	return nil
}

func (a *app) printUnits(units []ledger.Unit) {
	t := table.NewWriter()
	t.SetOutputMirror(a.stdout)
	t.AppendHeader(table.Row{"Conference", "Year", "Status", "Format", "Papers", "Rows", "Finished", "Duration", "Error"})

	for _, u := range units {
		errMsg := ""
		if u.Error != nil {
			errMsg = truncate(*u.Error, 60)
		}
		t.AppendRow(table.Row{
			u.Conference,
			u.Year,
			u.Status,
			u.Format,
			u.Papers,
			u.Rows,
			u.FinishedAt.Local().Format("2006-01-02 15:04"),
			u.Duration().Round(100 * time.Millisecond).String(),
			errMsg,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
