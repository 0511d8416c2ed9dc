package form_test

import (
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func householdForm(t *testing.T, configure func(*dsl.ItemBuilder)) (*form.Form, *form.RepeatingGroup) {
	t.Helper()
	b := dsl.New("household")
	g := b.Add("household", domain.TypeGroup).Repeats()
	g.Add("name", domain.TypeString)
	if configure != nil {
		configure(g)
	}
	f := form.New(b.Build())
	t.Cleanup(f.Dispose)
	w, ok := f.Find("household").(*form.RepeatingGroup)
	require.True(t, ok)
	return f, w
}

func TestRepeatingGroup_Pruning(t *testing.T) {
	f, w := householdForm(t, nil)
	require.Len(t, w.Instances(), 1)

	second := w.AddNode()
	require.NotNil(t, second)
	assert.Nil(t, f.Response().Item, "empty occurrences are pruned")

	require.NoError(t, form.MustQuestion(w.Instances()[0].Children()[0]).SetAnswer(0, "Ana"))
	require.NoError(t, form.MustQuestion(second.Children()[0]).SetAnswer(0, "Bea"))

	items := f.Response().Item
	require.Len(t, items, 2)
	for i, want := range []string{"Ana", "Bea"} {
		assert.Equal(t, "household", items[i].LinkID)
		require.Len(t, items[i].Item, 1)
		assert.Equal(t, want, items[i].Item[0].Answer[0].ValueString)
	}

	w.AddNode()
	assert.Len(t, f.Response().Item, 2, "only populated occurrences are serialized")
}

func TestRepeatingGroup_Bounds(t *testing.T) {
	_, w := householdForm(t, func(g *dsl.ItemBuilder) { g.MinOccurs(2).MaxOccurs(3) })

	require.Len(t, w.Instances(), 2, "the static minimum is materialized")
	assert.False(t, w.CanRemove())
	assert.False(t, w.RemoveNode(w.Instances()[0]))

	require.NotNil(t, w.AddNode())
	assert.False(t, w.CanAdd())
	assert.Nil(t, w.AddNode(), "no-op at capacity")
	assert.Len(t, w.Instances(), 3)

	third := w.Instances()[2]
	assert.True(t, w.RemoveNode(third))
	assert.Len(t, w.Instances(), 2)
	assert.False(t, w.RemoveNode(third))
}

func TestRepeatingGroup_StableKeys(t *testing.T) {
	_, w := householdForm(t, nil)
	second := w.AddNode()
	third := w.AddNode()
	require.True(t, w.RemoveNode(second))

	assert.Equal(t, "household[0]", w.Instances()[0].Key())
	assert.Equal(t, "household[2]", third.Key(), "removal never renumbers siblings")
	assert.Equal(t, "household[2]/name", third.Children()[0].Key())
}

func TestRepeatingGroup_OccurrenceScope(t *testing.T) {
	b := dsl.New("scoped")
	g := b.Add("household", domain.TypeGroup).Repeats().
		Variable("who", "%context.item.where(linkId = 'name').answer.value")
	g.Add("name", domain.TypeString)
	g.Add("note", domain.TypeString).EnableWhenExpression("%who = 'Ana'")

	f := form.New(b.Build())
	defer f.Dispose()
	w := f.Find("household").(*form.RepeatingGroup)
	second := w.AddNode()

	first := w.Instances()[0]
	require.NoError(t, form.MustQuestion(first.Children()[0]).SetAnswer(0, "Ana"))
	require.NoError(t, form.MustQuestion(second.Children()[0]).SetAnswer(0, "Bea"))

	assert.True(t, first.Children()[1].IsEnabled())
	assert.False(t, second.Children()[1].IsEnabled(), "each occurrence binds its own variables")

	assert.NotNil(t, first.Scope().LookupNode("name"))
	assert.Same(t, first.Children()[0], first.Scope().LookupNode("name"))
}

func TestRepeatingGroup_Validation(t *testing.T) {
	f, w := householdForm(t, func(g *dsl.ItemBuilder) { g.MinOccurs(2) })

	require.NoError(t, form.MustQuestion(w.Instances()[0].Children()[0]).SetAnswer(0, "Ana"))
	assert.False(t, f.ValidateAll())
	issues := w.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, domain.IssueRequired, issues[0].Code)
	assert.Equal(t, "At least 2 occurrences are required.", issues[0].Message)

	require.NoError(t, form.MustQuestion(w.Instances()[1].Children()[0]).SetAnswer(0, "Bea"))
	assert.True(t, f.ValidateAll())
}

func TestRepeatingGroup_Hidden(t *testing.T) {
	_, w := householdForm(t, nil)
	assert.False(t, w.Hidden())

	b := dsl.New("hidden")
	b.Add("household", domain.TypeGroup).Repeats().Hidden().Add("name", domain.TypeString)
	f := form.New(b.Build())
	defer f.Dispose()
	assert.True(t, f.Find("household").Hidden())
}

func TestQuestion_RepeatingAnswers(t *testing.T) {
	b := dsl.New("answers")
	b.Add("tags", domain.TypeString).Repeats().MaxOccurs(2)
	b.Add("single", domain.TypeString)

	f := form.New(b.Build())
	defer f.Dispose()

	tags, _ := f.Question("tags")
	require.Len(t, tags.Answers(), 1)
	require.NoError(t, tags.SetAnswer(0, "a"))
	added, err := tags.AddAnswer("b")
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.Equal(t, 1, added.Index())

	full, err := tags.AddAnswer("c")
	require.NoError(t, err)
	assert.Nil(t, full, "no-op at capacity")

	assert.True(t, tags.RemoveAnswer(added))
	assert.Equal(t, -1, added.Index())
	assert.False(t, tags.RemoveAnswer(added))

	single, _ := f.Question("single")
	assert.False(t, single.CanAddAnswer())
	got, err := single.AddAnswer("x")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, tags.SetAnswer(5, "z"), form.ErrAnswerIndex)

	r := f.Response()
	require.Len(t, r.Item, 1)
	assert.Len(t, r.Item[0].Answer, 1)
}

func TestOccurs_DynamicMinimum(t *testing.T) {
	b := dsl.New("dynamic-min")
	b.Add("count", domain.TypeInteger)
	b.Add("names", domain.TypeString).Repeats().
		MinOccursExpression("%resource.item.where(linkId = 'count').answer.value")

	f := form.New(b.Build())
	defer f.Dispose()
	names, _ := f.Question("names")
	require.NoError(t, names.SetAnswer(0, "a"))

	require.NoError(t, f.SetAnswer("count", 3))
	assert.Equal(t, 3, names.MinOccurs())
	assert.Len(t, names.Answers(), 1, "raising the minimum does not add occurrences")
	assert.False(t, f.ValidateAll())
	required := names.Issues().ByCode(domain.IssueRequired)
	require.Len(t, required, 1)
	assert.Equal(t, "At least 3 answers are required.", required[0].Message)

	_, err := names.AddAnswer("b")
	require.NoError(t, err)
	_, err = names.AddAnswer("c")
	require.NoError(t, err)
	assert.True(t, f.ValidateAll())
}

func TestOccurs_DynamicMaximum(t *testing.T) {
	b := dsl.New("dynamic-max")
	b.Add("cap", domain.TypeInteger)
	b.Add("names", domain.TypeString).Repeats().
		MaxOccursExpression("%resource.item.where(linkId = 'cap').answer.value")

	f := form.New(b.Build())
	defer f.Dispose()
	names, _ := f.Question("names")
	assert.Equal(t, form.Unbounded, names.MaxOccurs(), "an empty result falls back to the static bound")

	require.NoError(t, names.SetAnswer(0, "a"))
	for _, v := range []string{"b", "c"} {
		_, err := names.AddAnswer(v)
		require.NoError(t, err)
	}

	require.NoError(t, f.SetAnswer("cap", 2))
	assert.False(t, names.CanAddAnswer())
	got, err := names.AddAnswer("d")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, names.Answers(), 3, "lowering the maximum keeps existing occurrences")

	assert.False(t, f.ValidateAll())
	assert.Len(t, names.Issues().ByCode(domain.IssueStructure), 1)
}

func TestOccurs_ExpressionFailureFallsBack(t *testing.T) {
	b := dsl.New("fallback")
	b.Add("names", domain.TypeString).Repeats().MaxOccurs(2).MaxOccursExpression("%missing")

	f := form.New(b.Build())
	defer f.Dispose()
	names, _ := f.Question("names")

	assert.Equal(t, 2, names.MaxOccurs())
	errs := f.ExpressionErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, form.SlotMaxOccurs, errs[0].Slot)
	assert.Equal(t, "names", errs[0].LinkID)
}

func TestOccurs_NegativeClamped(t *testing.T) {
	b := dsl.New("negative")
	b.Add("names", domain.TypeString).Repeats().MinOccursExpression("-2")

	f := form.New(b.Build())
	defer f.Dispose()
	names, _ := f.Question("names")
	assert.Equal(t, 0, names.MinOccurs())
}
