// -- cmd/insights.go --
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gleanerhq/gleaner/internal/observability"
	"github.com/gleanerhq/gleaner/internal/retry"
)

var insightsSite string

// insightsCmd surfaces the retry strategy's learned-pattern analysis.
var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Analyze learned failure patterns from the persisted retry journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		strategy := retry.New(logger,
			retry.WithMaxHistory(loadedCfg.Resilience.MaxHistory),
			retry.WithStore(retry.NewStore(
				filepath.Join(loadedCfg.Resilience.DataDir, "retry_journal.json"), logger)),
		)
		strategy.Load()

		out := cmd.OutOrStdout()
		insights := strategy.AnalyzePatterns(insightsSite)
		if len(insights) == 0 {
			fmt.Fprintln(out, "No notable failure patterns.")
			return nil
		}
		for _, s := range insights {
			fmt.Fprintf(out, "- %s\n", s)
		}
		return nil
	},
}

func init() {
	insightsCmd.Flags().StringVar(&insightsSite, "site", "", "restrict analysis to one site")
	rootCmd.AddCommand(insightsCmd)
}
