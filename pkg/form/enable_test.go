package form_test

import (
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnablement_VariableExpression(t *testing.T) {
	b := dsl.New("vars")
	g := b.Add("g", domain.TypeGroup).
		Variable("var", "%context.item.where(linkId = 'control').answer.value")
	g.Add("control", domain.TypeInteger)
	g.Add("dependent", domain.TypeString).EnableWhenExpression("%var > 5")

	f := form.New(b.Build())
	defer f.Dispose()

	dependent, err := f.Question("dependent")
	require.NoError(t, err)
	assert.False(t, dependent.IsEnabled(), "an empty variable does not satisfy the expression")

	require.NoError(t, f.SetAnswer("control", 6))
	assert.True(t, dependent.IsEnabled())
	assert.False(t, dependent.Hidden())

	require.NoError(t, f.SetAnswer("control", 3))
	assert.False(t, dependent.IsEnabled())
	assert.True(t, dependent.Hidden())

	assert.Empty(t, f.ExpressionErrors())
}

func TestEnablement_ToggleOmitsContent(t *testing.T) {
	b := dsl.New("toggle")
	b.Add("toggle", domain.TypeBoolean)
	b.Add("extra", domain.TypeString).EnableWhen("toggle", domain.OpEqual, domain.Bool(true))

	f := form.New(b.Build())
	defer f.Dispose()

	require.NoError(t, f.SetAnswer("toggle", true))
	require.NoError(t, f.SetAnswer("extra", "details"))
	assert.Equal(t, []string{"toggle", "extra"}, linkIDs(f.Response().Item))

	require.NoError(t, f.SetAnswer("toggle", false))
	extra, _ := f.Question("extra")
	assert.False(t, extra.IsEnabled())
	assert.True(t, extra.Hidden())
	assert.Equal(t, []string{"toggle"}, linkIDs(f.Response().Item))

	assert.Equal(t, "details", extra.Value().ValueString, "the value is retained while disabled")
	require.NoError(t, f.SetAnswer("toggle", true))
	assert.Equal(t, []string{"toggle", "extra"}, linkIDs(f.Response().Item))
}

func TestEnablement_DisabledSubtree(t *testing.T) {
	b := dsl.New("subtree")
	b.Add("consent", domain.TypeBoolean)
	section := b.Add("section", domain.TypeGroup).EnableWhen("consent", domain.OpEqual, domain.Bool(true))
	section.Add("inner", domain.TypeString).Required()

	f := form.New(b.Build())
	defer f.Dispose()

	inner, _ := f.Question("inner")
	assert.False(t, inner.IsEnabled(), "children follow their parent")
	assert.True(t, f.ValidateAll(), "disabled nodes are exempt from validation")

	require.NoError(t, f.SetAnswer("consent", true))
	assert.True(t, inner.IsEnabled())
	assert.False(t, f.ValidateAll())
}

func TestEnablement_Operators(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		operand  domain.Value
		answer   any
		want     bool
	}{
		{"exists with answer", domain.OpExists, domain.Bool(true), 1, true},
		{"exists without answer", domain.OpExists, domain.Bool(true), nil, false},
		{"not exists without answer", domain.OpExists, domain.Bool(false), nil, true},
		{"equal", domain.OpEqual, domain.Integer(4), 4, true},
		{"equal mismatch", domain.OpEqual, domain.Integer(4), 5, false},
		{"not equal", domain.OpNotEqual, domain.Integer(4), 5, true},
		{"not equal without answer", domain.OpNotEqual, domain.Integer(4), nil, true},
		{"greater", domain.OpGreater, domain.Integer(4), 5, true},
		{"greater equal", domain.OpGreaterEqual, domain.Integer(4), 4, true},
		{"less", domain.OpLess, domain.Integer(4), 5, false},
		{"less equal", domain.OpLessEqual, domain.Integer(4), 3, true},
		{"ordering without answer", domain.OpLess, domain.Integer(4), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New("ops")
			b.Add("n", domain.TypeInteger)
			b.Add("target", domain.TypeString).EnableWhen("n", tt.operator, tt.operand)

			f := form.New(b.Build())
			defer f.Dispose()
			if tt.answer != nil {
				require.NoError(t, f.SetAnswer("n", tt.answer))
			}
			target, _ := f.Question("target")
			assert.Equal(t, tt.want, target.IsEnabled())
		})
	}
}

func TestEnablement_Behavior(t *testing.T) {
	build := func(anyMode bool) *form.Form {
		b := dsl.New("behavior")
		b.Add("a", domain.TypeBoolean)
		b.Add("b", domain.TypeBoolean)
		target := b.Add("target", domain.TypeString).
			EnableWhen("a", domain.OpEqual, domain.Bool(true)).
			EnableWhen("b", domain.OpEqual, domain.Bool(true))
		if anyMode {
			target.EnableAny()
		}
		return form.New(b.Build())
	}

	all := build(false)
	defer all.Dispose()
	require.NoError(t, all.SetAnswer("a", true))
	target, _ := all.Question("target")
	assert.False(t, target.IsEnabled())
	require.NoError(t, all.SetAnswer("b", true))
	assert.True(t, target.IsEnabled())

	anyForm := build(true)
	defer anyForm.Dispose()
	target, _ = anyForm.Question("target")
	assert.False(t, target.IsEnabled())
	require.NoError(t, anyForm.SetAnswer("b", true))
	assert.True(t, target.IsEnabled())
}

func TestEnablement_CodingOperand(t *testing.T) {
	yes := domain.Coding{System: "http://example.org/cs", Code: "y", Display: "Yes"}
	b := dsl.New("coding")
	b.Add("answer", domain.TypeChoice).Codings(yes, domain.Coding{System: "http://example.org/cs", Code: "n"})
	b.Add("followup", domain.TypeString).
		EnableWhen("answer", domain.OpEqual, domain.CodingValue(domain.Coding{System: "http://example.org/cs", Code: "y"}))

	f := form.New(b.Build())
	defer f.Dispose()

	require.NoError(t, f.SetAnswer("answer", yes))
	followup, _ := f.Question("followup")
	assert.True(t, followup.IsEnabled(), "codings match on system and code")
}

func TestEnablement_ChainedDisable(t *testing.T) {
	b := dsl.New("chain")
	b.Add("a", domain.TypeBoolean)
	b.Add("b", domain.TypeBoolean).EnableWhen("a", domain.OpEqual, domain.Bool(true))
	b.Add("c", domain.TypeString).EnableWhen("b", domain.OpExists, domain.Bool(true))

	f := form.New(b.Build())
	defer f.Dispose()

	require.NoError(t, f.SetAnswer("a", true))
	require.NoError(t, f.SetAnswer("b", true))
	c, _ := f.Question("c")
	assert.True(t, c.IsEnabled())

	require.NoError(t, f.SetAnswer("a", false))
	assert.False(t, c.IsEnabled(), "answers of a disabled question count as absent")
}

func TestEnablement_AncestorCannotSeeRepeatDescendants(t *testing.T) {
	b := dsl.New("isolation")
	b.Add("household", domain.TypeGroup).Repeats().Add("member", domain.TypeString)
	b.Add("summary", domain.TypeString).EnableWhen("member", domain.OpExists, domain.Bool(true))

	f := form.New(b.Build())
	defer f.Dispose()

	w := f.Find("household").(*form.RepeatingGroup)
	member := form.MustQuestion(w.Instances()[0].Children()[0])
	require.NoError(t, member.SetAnswer(0, "Ana"))

	summary, _ := f.Question("summary")
	assert.False(t, summary.IsEnabled(), "data inside repeat occurrences is not visible to outer items")
	assert.Nil(t, f.Find("member"))
}

func TestEnablement_TemplateHidden(t *testing.T) {
	b := dsl.New("hidden")
	b.Add("secret", domain.TypeString).Hidden()

	f := form.New(b.Build())
	defer f.Dispose()

	secret, _ := f.Question("secret")
	assert.True(t, secret.Hidden())
	assert.True(t, secret.IsEnabled())

	require.NoError(t, f.SetAnswer("secret", "kept"))
	assert.Equal(t, []string{"secret"}, linkIDs(f.Response().Item), "hidden but populated items are serialized")
}

func linkIDs(items []domain.ResponseItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.LinkID)
	}
	return out
}
