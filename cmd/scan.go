package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timvw/vibecheck/internal/model"
	"github.com/timvw/vibecheck/internal/vibe"
	"gopkg.in/yaml.v3"
)

// scanManifest is the YAML shape consumed by the scan command.
type scanManifest struct {
	Checks []scanCheck `yaml:"checks"`
}

type scanCheck struct {
	Image         string                  `yaml:"image"`
	Specification string                  `yaml:"specification"`
	Provider      string                  `yaml:"provider"`
	Options       model.EvaluationOptions `yaml:"options"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <manifest.yaml>",
	Short: "Run a manifest of visual checks",
	Long: `Evaluate every check in a YAML manifest, sequentially, and print a
summary. A manifest entry names an image, a specification, and optionally
a provider and per-check options:

  checks:
    - image: shots/login.png
      specification: a blue "Sign in" button centered in the form
    - image: shots/banner.png
      specification: a dismissable cookie banner at the bottom
      provider: openai
      options:
        confidence_threshold: 0.9

The command exits non-zero when any check fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}
		var manifest scanManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("parsing manifest %s: %w", args[0], err)
		}
		if len(manifest.Checks) == 0 {
			return fmt.Errorf("manifest %s contains no checks", args[0])
		}

		cfg, reg, tel, err := setup(ctx)
		if err != nil {
			return err
		}
		defer tel.Shutdown(ctx)
		hist := historyLog(cfg)

		failed := 0
		for i, check := range manifest.Checks {
			req := model.EvaluationRequest{
				ImagePath:     check.Image,
				Specification: check.Specification,
				Options:       check.Options.MergedWith(callOptions()),
			}

			result, checkErr := vibe.Check(ctx, reg, req, check.Provider)
			recordHistory(hist, req, result, checkErr == nil)
			switch {
			case checkErr == nil:
				fmt.Fprintf(os.Stdout, "PASS  [%d/%d] %s (confidence %.2f)\n",
					i+1, len(manifest.Checks), check.Image, result.Confidence)
			case isAssertion(checkErr):
				failed++
				fmt.Fprintf(os.Stdout, "FAIL  [%d/%d] %s\n%s\n",
					i+1, len(manifest.Checks), check.Image, indent(checkErr.Error()))
			default:
				failed++
				fmt.Fprintf(os.Stdout, "ERROR [%d/%d] %s: %v\n",
					i+1, len(manifest.Checks), check.Image, checkErr)
			}
		}

		fmt.Fprintf(os.Stdout, "\n%d/%d checks passed\n", len(manifest.Checks)-failed, len(manifest.Checks))
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func isAssertion(err error) bool {
	var assertErr *model.AssertionError
	return errors.As(err, &assertErr)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "      " + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
