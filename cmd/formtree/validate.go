package main

import (
	"fmt"

	"github.com/aretw0/formtree/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [questionnaire]",
	Short: "Validate a response against its questionnaire",
	Long: `Builds the questionnaire's form, hydrates it from --response when given, runs a full
validation and reports every issue and expression error. Exits with status 1 when the
response is invalid. The questionnaire defaults to the one the response references.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("response", "r", "", "QuestionnaireResponse JSON file")
	validateCmd.Flags().Bool("plain", false, "Plain output even on a terminal")
}

func runValidate(cmd *cobra.Command, args []string) error {
	responsePath, _ := cmd.Flags().GetString("response")
	plain, _ := cmd.Flags().GetBool("plain")

	seed, err := readResponse(responsePath)
	if err != nil {
		return err
	}
	ref, err := questionnaireRef(args, seed)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	eng, err := newEngine(cmd, logger)
	if err != nil {
		return err
	}
	res, err := eng.Validate(cmd.Context(), ref, seed)
	if err != nil {
		return err
	}

	report := tui.Report{
		Questionnaire: ref,
		Title:         res.Questionnaire.Title,
		Response:      responsePath,
		Issues:        res.Issues,
		Expressions:   res.Expressions,
	}
	out := cmd.OutOrStdout()
	if !plain && isTerminal(out) {
		render, err := tui.NewRenderer(0)
		if err != nil {
			return err
		}
		md, err := render(report.Markdown())
		if err != nil {
			return err
		}
		fmt.Fprint(out, md)
		fmt.Fprintln(out, tui.Status(out, report.Valid(), report.Headline()))
	} else {
		fmt.Fprint(out, report.Plain())
	}

	if !report.Valid() {
		return &exitError{code: 1}
	}
	return nil
}
