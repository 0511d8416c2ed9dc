package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/formtree"
	"github.com/aretw0/formtree/internal/logging"
	"github.com/aretw0/formtree/pkg/adapters/file"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// envLogLevel overrides the default of --log-level.
const envLogLevel = "FORMTREE_LOG_LEVEL"

// exitError carries a process exit code out of a command without printing an error.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:           "formtree",
	Short:         "formtree is a reactive runtime for FHIR Questionnaires",
	Long:          `formtree loads FHIR Questionnaires, evaluates their logic against responses, validates them and serves live form sessions over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	level := os.Getenv(envLogLevel)
	if level == "" {
		level = "warn"
	}
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the questionnaires")
	rootCmd.PersistentFlags().String("source", "loam", "Questionnaire source: loam or file")
	rootCmd.PersistentFlags().String("log-level", level, "Log level: debug, info, warn or error (env "+envLogLevel+")")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	if format == "json" {
		return logging.NewJSON(logging.ParseLevel(level), cmd.ErrOrStderr())
	}
	return logging.New(logging.ParseLevel(level))
}

func newEngine(cmd *cobra.Command, logger *slog.Logger, opts ...formtree.Option) (*formtree.Engine, error) {
	dir, _ := cmd.Flags().GetString("dir")
	source, _ := cmd.Flags().GetString("source")

	opts = append([]formtree.Option{formtree.WithLogger(logger)}, opts...)
	switch source {
	case "loam":
	case "file":
		opts = append(opts, formtree.WithLoader(file.NewLoader(dir)))
	default:
		return nil, fmt.Errorf("unknown source %q (want loam or file)", source)
	}
	eng, err := formtree.New(dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}
	return eng, nil
}

// readResponse decodes the QuestionnaireResponse at path; an empty path yields nil.
func readResponse(path string) (*domain.QuestionnaireResponse, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r domain.QuestionnaireResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse response %s: %w", path, err)
	}
	return &r, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
