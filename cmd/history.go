package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/vibecheck/internal/config"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent evaluation results",
	Long: `Print recent evaluations from the history log, oldest first.

Every check and scan appends its outcome to a JSONL log (default location
under the XDG state directory; override with history_file in the config or
VIBECHECK_HISTORY_FILE).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyFlags(cfg)

		hist := historyLog(cfg)
		if hist == nil {
			return fmt.Errorf("history log is disabled")
		}
		records, err := hist.Tail(flagHistoryLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(os.Stdout, "no recorded evaluations in %s\n", hist.Path())
			return nil
		}

		for _, r := range records {
			status := "FAIL"
			if r.Passed {
				status = "PASS"
			}
			fmt.Fprintf(os.Stdout, "%s  %s  %-9s %.2f  %s  %s\n",
				r.TS.Format("2006-01-02 15:04:05"), status, r.Provider,
				r.Confidence, r.Artifact, r.Specification)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "number of records to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
