package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"resucheck/internal/feedback"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <feedback.json>",
	Short: "Print analyzer feedback in its normalized shape",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

var normalizeStrict bool

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeStrict, "strict", false, "Fail when the input does not match the feedback schema")

	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	fb, err := loadFeedback(args[0], normalizeStrict)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(fb)
}

func loadFeedback(path string, strict bool) (feedback.Feedback, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return feedback.Feedback{}, fmt.Errorf("read %s: %w", path, err)
	}
	if strict {
		if err := feedback.Validate(raw); err != nil {
			return feedback.Feedback{}, err
		}
	}
	fb, err := feedback.Normalize(raw)
	if err != nil {
		return feedback.Feedback{}, fmt.Errorf("normalize %s: %w", path, err)
	}
	return fb, nil
}
