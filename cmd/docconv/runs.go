package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/manekies/document-converter-app/internal/export"
	"github.com/manekies/document-converter-app/internal/repository"
)

func newRunsCmd(a *app) *cobra.Command {
	var (
		limit    int
		document string
		xlsx     string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent processing runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if xlsx != "" {
				data, err := export.NewService(rt.Runs, a.logger).ExportRunsXLSX(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return os.WriteFile(xlsx, data, 0o644)
			}

			var runs []repository.Run
			if document != "" {
				runs, err = rt.Runs.ListByDocument(cmd.Context(), document)
			} else {
				runs, err = rt.Runs.ListRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tDOCUMENT\tENGINE\tREFINER\tCONF\tELEMENTS\tDURATION\tSTATUS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%d\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.DocumentID, r.Engine, r.Refiner,
					r.Confidence, r.ElementCount, r.Duration.Round(time.Millisecond), r.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of runs to show")
	cmd.Flags().StringVar(&document, "document", "", "only runs for this document id")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "write the runs to this XLSX file instead of printing")
	cmd.AddCommand(newRunsStatsCmd(a))
	return cmd
}

func newRunsStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate runs per recognition engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.Runs.StatsByEngine(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENGINE\tRUNS\tFAILED\tAVG CONF")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\n", s.Engine, s.Runs, s.Failed, s.AvgConfidence)
			}
			return tw.Flush()
		},
	}
}
