package main

import (
	"fmt"

	"github.com/aretw0/formtree/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [questionnaire]",
	Short: "Print the questionnaire item tree as a Mermaid flowchart",
	Long: `Prints the item tree with its enableWhen dependencies. With --response, answered,
disabled and invalid items are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		responsePath, _ := cmd.Flags().GetString("response")
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

		var overlay *graph.GraphOverlay
		if seed != nil {
			f.ValidateAll()
			overlay = graph.OverlayFromForm(f)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(f.Questionnaire(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("response", "r", "", "QuestionnaireResponse JSON file to overlay")
}
