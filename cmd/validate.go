package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evidence-cli/internal/grounding"
	"github.com/sells-group/evidence-cli/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a narrative's claims against an evidence bundle",
	Long: `Extracts verifiable claims (numbers, dates, names, quotes, factual
sentences) from a narrative and checks each against the evidence bundle,
reporting exactly which claims are unsupported.

Exits non-zero when the narrative fails the grounding verdict.

Examples:
  validate --narrative answer.txt --evidence bundle.json
  validate --narrative answer.txt --evidence bundle.json --strict`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.String("narrative", "", "path to the narrative text file (required)")
	f.String("evidence", "", "path to the evidence bundle JSON file (required)")
	f.Bool("strict", false, "fail on any ungrounded claim")
	_ = validateCmd.MarkFlagRequired("narrative")
	_ = validateCmd.MarkFlagRequired("evidence")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	narrativePath, _ := cmd.Flags().GetString("narrative")
	evidencePath, _ := cmd.Flags().GetString("evidence")
	strict, _ := cmd.Flags().GetBool("strict")

	narrative, err := os.ReadFile(narrativePath)
	if err != nil {
		return eris.Wrapf(err, "validate: read narrative %s", narrativePath)
	}

	evidenceJSON, err := os.ReadFile(evidencePath)
	if err != nil {
		return eris.Wrapf(err, "validate: read evidence %s", evidencePath)
	}
	var bundle model.EvidenceBundle
	if err := json.Unmarshal(evidenceJSON, &bundle); err != nil {
		return eris.Wrap(err, "validate: parse evidence bundle")
	}

	validator := grounding.NewValidator(cfg.Grounding)
	result := validator.Validate(string(narrative), bundle, strict)

	printGrounding(result)

	if !result.Grounded {
		return eris.Errorf("validate: narrative failed grounding (ratio %.2f)", result.Ratio)
	}
	return nil
}

func printGrounding(r model.GroundingResult) {
	verdict := "PASSED"
	if !r.Grounded {
		verdict = "FAILED"
	}
	fmt.Printf("Grounding %s: ratio %.2f (%d grounded, %d ungrounded)\n",
		verdict, r.Ratio, len(r.GroundedClaims), len(r.UngroundedClaims))

	if len(r.GroundedClaims) > 0 {
		fmt.Println("\nGrounded claims:")
		for _, c := range r.GroundedClaims {
			fmt.Printf("  [%s] %s\n", c.Class, c.Text)
		}
	}
	if len(r.UngroundedClaims) > 0 {
		fmt.Println("\nUngrounded claims:")
		for _, c := range r.UngroundedClaims {
			line := fmt.Sprintf("  [%s] %s", c.Class, c.Text)
			if c.Note != "" {
				line += " (" + c.Note + ")"
			}
			fmt.Println(line)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range r.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}
