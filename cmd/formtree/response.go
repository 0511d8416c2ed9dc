package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/formtree/pkg/adapters/memory"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/persistence/middleware"
	"github.com/spf13/cobra"
)

var responseCmd = &cobra.Command{
	Use:   "response [questionnaire]",
	Short: "Print the response built from a questionnaire",
	Long: `Builds the questionnaire's form, hydrates it from --response, applies --set answers and
prints the resulting QuestionnaireResponse as JSON. Initial values and calculated
expressions are applied; disabled and empty items are left out. Answers of items whose
linkId matches a --mask pattern are masked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResponse,
}

func init() {
	rootCmd.AddCommand(responseCmd)
	responseCmd.Flags().StringP("response", "r", "", "QuestionnaireResponse JSON file")
	responseCmd.Flags().StringArray("set", nil, "Answer as ref=value; value is JSON or a plain string (repeatable)")
	responseCmd.Flags().StringArray("mask", nil, "Regular expression of linkIds to mask (repeatable)")
}

func runResponse(cmd *cobra.Command, args []string) error {
	responsePath, _ := cmd.Flags().GetString("response")
	sets, _ := cmd.Flags().GetStringArray("set")
	masks, _ := cmd.Flags().GetStringArray("mask")

	seed, err := readResponse(responsePath)
	if err != nil {
		return err
	}
	ref, err := questionnaireRef(args, seed)
	if err != nil {
		return err
	}

	eng, err := newEngine(cmd, newLogger(cmd))
	if err != nil {
		return err
	}
	f, err := eng.Open(cmd.Context(), ref, seed)
	if err != nil {
		return err
	}
	defer f.Dispose()

	for _, s := range sets {
		target, value, err := parseSet(s)
		if err != nil {
			return err
		}
		if err := f.SetAnswer(target, value); err != nil {
			return err
		}
	}

	r := f.Response()
	if len(masks) > 0 {
		if r, err = mask(cmd, r, masks); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// mask routes r through the PII middleware and returns what the store kept.
func mask(cmd *cobra.Command, r *domain.QuestionnaireResponse, patterns []string) (*domain.QuestionnaireResponse, error) {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid --mask %q: %w", p, err)
		}
	}
	store := middleware.Chain(memory.NewStore(), middleware.NewPIIMiddleware(patterns))
	const id = "masked"
	if err := store.Save(cmd.Context(), id, r); err != nil {
		return nil, err
	}
	return store.Load(cmd.Context(), id)
}

func parseSet(s string) (string, any, error) {
	target, raw, ok := strings.Cut(s, "=")
	if !ok || target == "" {
		return "", nil, fmt.Errorf("invalid --set %q: want ref=value", s)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return target, raw, nil
	}
	return target, v, nil
}

func questionnaireRef(args []string, seed *domain.QuestionnaireResponse) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if seed != nil && seed.Questionnaire != "" {
		return seed.Questionnaire, nil
	}
	return "", fmt.Errorf("a questionnaire argument or a --response referencing one is required")
}
