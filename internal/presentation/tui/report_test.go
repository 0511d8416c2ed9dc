package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		Questionnaire: "intake",
		Title:         "Patient intake",
		Issues: domain.IssueList{
			{Code: domain.IssueRequired, Message: "An answer is required.", LinkID: "name", NodeKey: "name", AnswerIndex: domain.NoAnswer},
			{Code: domain.IssueValue, Message: "Value must be at most 10 | units.", LinkID: "n", NodeKey: "g/n", AnswerIndex: 0},
		},
		Expressions: []*form.ExpressionError{
			{Slot: form.SlotEnableWhen, LinkID: "late", Kind: fhirpath.KindUnresolved, Err: errors.New("undefined variable %x")},
		},
	}
}

func TestReport_Markdown(t *testing.T) {
	md := sampleReport().Markdown()

	assert.True(t, strings.HasPrefix(md, "# Patient intake\n"))
	assert.Contains(t, md, "**Result:** intake has 2 issues")
	assert.Contains(t, md, "| `name` | - | required | An answer is required. |")
	assert.Contains(t, md, `| `+"`g/n`"+` | 0 | value | Value must be at most 10 \| units. |`)
	assert.Contains(t, md, "## Expression errors")
	assert.Contains(t, md, "`late` enableWhen (unresolved)")
}

func TestReport_Valid(t *testing.T) {
	r := Report{Questionnaire: "intake", Response: "r.json"}
	assert.True(t, r.Valid())
	assert.Equal(t, "r.json is valid", r.Headline())
	assert.NotContains(t, r.Markdown(), "## Issues")
	assert.Equal(t, "r.json is valid\n", r.Plain())
}

func TestReport_Plain(t *testing.T) {
	out := sampleReport().Plain()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "intake has 2 issues", lines[0])
	assert.Equal(t, "  name: An answer is required. (required)", lines[1])
	assert.Equal(t, "  n[0]: Value must be at most 10 | units. (value)", lines[2])
}

func TestRenderer(t *testing.T) {
	render, err := NewRenderer(80)
	require.NoError(t, err)
	out, err := render(sampleReport().Markdown())
	require.NoError(t, err)
	assert.Contains(t, out, "Patient intake")
}

func TestStatus(t *testing.T) {
	var buf bytes.Buffer
	assert.Contains(t, Status(&buf, true, "all good"), "✔ all good")
	assert.Contains(t, Status(&buf, false, "broken"), "✘ broken")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "version 1.2.3")
}
