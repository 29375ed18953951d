package main

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/batch"
	"github.com/cwygoda/grabber/internal/domain"
)

func newBatchCmd(a *app) *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "batch <file.csv>",
		Short: "Grab every listing named in a CSV file",
		Long: `Grab every listing named in a CSV file, one after the other.

Each row holds a listing URL and a folder name. A header row naming the
"link"/"url" and "pasta"/"folder" columns is recognised; without one the
first two columns are used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comma, size := utf8.DecodeRuneInString(delimiter)
			if size == 0 || size != len(delimiter) {
				return fmt.Errorf("delimiter must be a single character, got %q", delimiter)
			}

			rows, err := batch.NewReader(comma, a.log).ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("no listings in %s", args[0])
			}

			g := a.grabber()
			out := cmd.OutOrStdout()

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Line", "Folder", "Saved", "Total", "Result"})

			failed := 0
			for i, row := range rows {
				if cmd.Context().Err() != nil {
					break
				}
				fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(rows), row.URL)

				result := "ok"
				summary, err := g.Grab(cmd.Context(), row.URL, row.Folder, printSink(out))
				switch {
				case errors.Is(err, domain.ErrNoImages):
					result = "no images"
					failed++
				case err != nil:
					result = err.Error()
					failed++
					a.log.Warn("listing failed", zap.Int("line", row.Line), zap.String("url", row.URL), zap.Error(err))
				}
				t.AppendRow(table.Row{row.Line, row.Folder, summary.Saved, summary.Total, result})
			}

			t.Render()

			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d listings failed", failed, len(rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "field delimiter")
	return cmd
}
