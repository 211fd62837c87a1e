package main

import (
	"fmt"
	"os"

	"github.com/pevans/confpapers/corpus"
	"github.com/spf13/cobra"
)

func (a *app) dedupeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dedupe FILE",
		Short: "Remove duplicate rows from a corpus file, keeping the first of each.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0]
			}
			return a.runDedupe(args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result here instead of rewriting FILE")
	return cmd
}

func (a *app) runDedupe(input, output string) error {
	f, err := os.Open(input)
	if err != nil {
		return dataError(fmt.Errorf("failed to open corpus: %w", err))
	}
	records, err := corpus.ReadCSV(f)
	f.Close()
	if err != nil {
		return dataError(fmt.Errorf("failed to read corpus %s: %w", input, err))
	}

	c := corpus.FromRecords(records)
	dropped := len(records) - c.Len()

	if !c.YearOrdered() {
		a.logger.Warn().Str("path", input).Msg("Corpus is not ordered by year; order kept as is")
	}

	if dropped == 0 && output == input {
		fmt.Fprintf(a.stdout, "No duplicates in %s (%d rows)\n", input, c.Len())
		return nil
	}

	if err := corpus.Save(output, c); err != nil {
		return fmt.Errorf("failed to write corpus: %w", err)
	}

	a.logger.Info().
		Str("input", input).
		Str("output", output).
		Int("rows", c.Len()).
		Int("dropped", dropped).
		Msg("Deduplicated corpus")
	fmt.Fprintf(a.stdout, "Removed %d duplicate rows, %d rows written to %s\n", dropped, c.Len(), output)
	return nil
}
