package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/form"
)

// Report summarizes a validation run over one questionnaire.
type Report struct {
	Questionnaire string
	Title         string
	Response      string
	Issues        domain.IssueList
	Expressions   []*form.ExpressionError
}

// Valid reports whether the run found no issues.
func (r Report) Valid() bool {
	return len(r.Issues) == 0
}

// Headline is the one-line verdict.
func (r Report) Headline() string {
	if r.Valid() {
		return fmt.Sprintf("%s is valid", r.subject())
	}
	return fmt.Sprintf("%s has %d %s", r.subject(), len(r.Issues), plural(len(r.Issues), "issue", "issues"))
}

func (r Report) subject() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Questionnaire
}

// Markdown renders the report for glamour.
func (r Report) Markdown() string {
	var sb strings.Builder
	title := r.Title
	if title == "" {
		title = r.Questionnaire
	}
	fmt.Fprintf(&sb, "# %s\n\n", escape(title))
	fmt.Fprintf(&sb, "- **Questionnaire:** `%s`\n", r.Questionnaire)
	if r.Response != "" {
		fmt.Fprintf(&sb, "- **Response:** `%s`\n", r.Response)
	}
	fmt.Fprintf(&sb, "- **Result:** %s\n\n", r.Headline())

	if len(r.Issues) > 0 {
		sb.WriteString("## Issues\n\n")
		sb.WriteString("| Item | Answer | Code | Message |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, i := range r.Issues {
			answer := "-"
			if i.AnswerIndex != domain.NoAnswer {
				answer = fmt.Sprint(i.AnswerIndex)
			}
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", i.NodeKey, answer, i.Code, escape(i.Message))
		}
		sb.WriteString("\n")
	}

	if len(r.Expressions) > 0 {
		sb.WriteString("## Expression errors\n\n")
		for _, e := range r.Expressions {
			fmt.Fprintf(&sb, "- `%s` %s (%s): %s\n", e.LinkID, e.Slot, e.Kind, escape(e.Err.Error()))
		}
	}
	return sb.String()
}

// Plain renders the report as plain lines for pipes and logs.
func (r Report) Plain() string {
	var sb strings.Builder
	sb.WriteString(r.Headline())
	sb.WriteString("\n")
	for _, i := range r.Issues {
		fmt.Fprintf(&sb, "  %s\n", i)
	}
	for _, e := range r.Expressions {
		fmt.Fprintf(&sb, "  %s\n", e)
	}
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
