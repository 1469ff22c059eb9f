package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timvw/vibecheck/internal/model"
	"github.com/timvw/vibecheck/internal/vibe"
)

var checkCmd = &cobra.Command{
	Use:   "check <image> <specification>",
	Short: "Assert that a screenshot matches a specification",
	Long: `Evaluate a single screenshot against a natural-language specification.

The evaluation result is printed as JSON. The command exits non-zero when
the verdict is "no" or the confidence does not clear the threshold.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, reg, tel, err := setup(ctx)
		if err != nil {
			return err
		}
		defer tel.Shutdown(ctx)

		req := model.EvaluationRequest{
			ImagePath:     args[0],
			Specification: strings.Join(args[1:], " "),
			Options:       callOptions(),
		}

		result, checkErr := vibe.Check(ctx, reg, req, cfg.Provider)
		recordHistory(historyLog(cfg), req, result, checkErr == nil)
		if result != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		}

		var assertErr *model.AssertionError
		if errors.As(checkErr, &assertErr) {
			fmt.Fprintln(os.Stderr, assertErr.Error())
			return fmt.Errorf("check failed")
		}
		return checkErr
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
