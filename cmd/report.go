// -- cmd/report.go --
package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gleanerhq/gleaner/api/schemas"
	"github.com/gleanerhq/gleaner/internal/analytics"
	"github.com/gleanerhq/gleaner/internal/observability"
	"github.com/gleanerhq/gleaner/internal/retry"
)

var (
	reportSite  string
	reportHours int
)

// reportCmd prints the operator health report from persisted state.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a failure/health report from persisted analytics state",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		dataDir := loadedCfg.Resilience.DataDir

		stats := analytics.New(logger,
			analytics.WithMaxRecords(loadedCfg.Resilience.MaxRecords),
			analytics.WithStore(analytics.NewStore(
				filepath.Join(dataDir, "analytics_state.json"), logger)),
		)
		strategy := retry.New(logger,
			retry.WithMaxHistory(loadedCfg.Resilience.MaxHistory),
			retry.WithStore(retry.NewStore(
				filepath.Join(dataDir, "retry_journal.json"), logger)),
		)

		// The two journals are independent files; load them concurrently.
		var g errgroup.Group
		g.Go(func() error { stats.Load(); return nil })
		g.Go(func() error { strategy.Load(); return nil })
		if err := g.Wait(); err != nil {
			return err
		}

		window := time.Duration(reportHours) * time.Hour
		report := stats.GenerateReport(reportSite, window)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Health report (last %dh", reportHours)
		if reportSite != "" {
			fmt.Fprintf(out, ", site %s", reportSite)
		}
		fmt.Fprintf(out, ") generated %s\n\n", report.GeneratedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Total failures: %d\n", report.TotalFailures)
		fmt.Fprintf(out, "Average retries per failure: %.2f\n", report.AvgRetryCount)
		fmt.Fprintf(out, "Recovered after retry: %.0f%%\n\n", report.SuccessAfterRetryRate*100)

		if len(report.FailuresByType) > 0 {
			fmt.Fprintln(out, "Failures by type:")
			for _, ft := range schemas.AllFailureTypes {
				if n := report.FailuresByType[ft]; n > 0 {
					fmt.Fprintf(out, "  %-20s %d\n", ft, n)
				}
			}
			fmt.Fprintln(out)
		}

		fmt.Fprintln(out, "Site health:")
		metrics := stats.AllSiteMetrics()
		sites := make([]string, 0, len(metrics))
		for name := range metrics {
			sites = append(sites, name)
		}
		sort.Strings(sites)
		for _, name := range sites {
			m := metrics[name]
			fmt.Fprintf(out, "  %-30s health %.3f  requests %d  failures %d\n",
				name, m.HealthScore, m.TotalRequests, m.TotalFailures)
		}
		fmt.Fprintln(out)

		if len(report.Insights) > 0 {
			fmt.Fprintln(out, "Insights:")
			for _, s := range report.Insights {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			fmt.Fprintln(out)
		}

		fmt.Fprintln(out, "Recommendations:")
		for _, s := range report.Recommendations {
			fmt.Fprintf(out, "  - %s\n", s)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportSite, "site", "", "restrict the report to one site")
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "trailing window in hours")
	rootCmd.AddCommand(reportCmd)
}
