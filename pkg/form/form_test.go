package form_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/aretw0/formtree/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripQuestionnaire() *domain.Questionnaire {
	b := dsl.New("roundtrip").URL("http://example.org/Questionnaire/roundtrip")
	b.Add("name", domain.TypeString).Text("Name")
	b.Add("age", domain.TypeInteger)
	pets := b.Add("pets", domain.TypeBoolean)
	pets.Add("petName", domain.TypeString)
	b.Add("household", domain.TypeGroup).Repeats().Add("member", domain.TypeString)
	b.Add("details", domain.TypeGroup).Add("note", domain.TypeText)
	return b.Build()
}

const roundTripResponse = `{
  "resourceType": "QuestionnaireResponse",
  "id": "r1",
  "questionnaire": "http://example.org/Questionnaire/roundtrip",
  "status": "in-progress",
  "item": [
    {"linkId": "name", "text": "Name", "answer": [{"valueString": "Ada"}]},
    {"linkId": "age", "answer": [{"valueInteger": 36}]},
    {"linkId": "pets", "answer": [{"valueBoolean": true, "item": [
      {"linkId": "petName", "answer": [{"valueString": "Rex"}]}
    ]}]},
    {"linkId": "household", "item": [{"linkId": "member", "answer": [{"valueString": "Bob"}]}]},
    {"linkId": "household", "item": [{"linkId": "member", "answer": [{"valueString": "Eve"}]}]},
    {"linkId": "details", "item": [{"linkId": "note", "answer": [{"valueString": "none"}]}]}
  ]
}`

func TestForm_RoundTrip(t *testing.T) {
	var seed domain.QuestionnaireResponse
	require.NoError(t, json.Unmarshal([]byte(roundTripResponse), &seed))

	f := form.New(roundTripQuestionnaire(), form.WithResponse(&seed))
	defer f.Dispose()

	assert.Equal(t, &seed, f.Response())

	out, err := json.Marshal(f.Response())
	require.NoError(t, err)
	assert.JSONEq(t, roundTripResponse, string(out))
}

func TestForm_HydrationByPosition(t *testing.T) {
	var seed domain.QuestionnaireResponse
	require.NoError(t, json.Unmarshal([]byte(roundTripResponse), &seed))

	f := form.New(roundTripQuestionnaire(), form.WithResponse(&seed))
	defer f.Dispose()

	w, ok := f.Find("household").(*form.RepeatingGroup)
	require.True(t, ok)
	require.Len(t, w.Instances(), 2)

	second := form.MustQuestion(w.Instances()[1].Children()[0])
	assert.Equal(t, "Eve", second.Value().ValueString)
	assert.Equal(t, "household[1]/member", second.Key())
}

func TestForm_EmptyResponse(t *testing.T) {
	b := dsl.New("local")
	b.Add("a", domain.TypeString)
	f := form.New(b.Build())
	defer f.Dispose()

	r := f.Response()
	assert.Equal(t, domain.ResourceTypeResponse, r.ResourceType)
	assert.Equal(t, domain.StatusInProgress, r.Status)
	assert.Equal(t, "Questionnaire/local", r.Questionnaire, "falls back to a local reference without a canonical url")
	assert.Nil(t, r.Item)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"item"`)
}

func TestForm_SetAnswerCoercion(t *testing.T) {
	b := dsl.New("coerce")
	b.Add("age", domain.TypeInteger)
	b.Add("weight", domain.TypeDecimal)
	f := form.New(b.Build())
	defer f.Dispose()

	require.NoError(t, f.SetAnswer("age", 42))
	require.NoError(t, f.SetAnswer("weight", 70))

	err := f.SetAnswer("age", "forty")
	assert.ErrorIs(t, err, schema.ErrCoercion)

	age, err := f.Question("age")
	require.NoError(t, err)
	require.NotNil(t, age.Value().ValueInteger)
	assert.Equal(t, int64(42), *age.Value().ValueInteger, "a failed coercion leaves the answer unchanged")

	weight, _ := f.Question("weight")
	require.NotNil(t, weight.Value().ValueDecimal)
	assert.Equal(t, 70.0, *weight.Value().ValueDecimal)

	_, err = f.Question("missing")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestForm_QuestionAssertion(t *testing.T) {
	b := dsl.New("assert")
	b.Add("intro", domain.TypeDisplay).Text("Welcome")
	f := form.New(b.Build())
	defer f.Dispose()

	_, err := f.Question("intro")
	assert.ErrorIs(t, err, domain.ErrNotQuestion)
	assert.PanicsWithError(t, domain.ErrNotQuestion.Error(), func() {
		form.MustQuestion(f.Find("intro"))
	})
}

func TestForm_Submit(t *testing.T) {
	b := dsl.New("submit")
	b.Add("name", domain.TypeString).Required()
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	f := form.New(b.Build(), form.WithClock(clock))
	defer f.Dispose()

	_, err := f.Submit()
	require.Error(t, err)
	var issues domain.IssueList
	require.ErrorAs(t, err, &issues)
	assert.Equal(t, domain.IssueRequired, issues[0].Code)
	assert.Equal(t, "An answer is required.", issues[0].Message)
	assert.True(t, f.Submitted())

	require.NoError(t, f.SetAnswer("name", "Ada"))
	r, err := f.Submit()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, r.Status)
	assert.Equal(t, "2024-03-01T12:00:00Z", r.Authored)
}

func TestForm_ResetRestoresInitialState(t *testing.T) {
	b := dsl.New("reset")
	b.Add("name", domain.TypeString).Initial(domain.String("anonymous"))
	b.Add("tags", domain.TypeString).Repeats()
	q := b.Build()

	keys := func(f *form.Form) []string {
		var out []string
		f.Walk(func(n form.Node) bool {
			out = append(out, n.Key())
			return true
		})
		return out
	}

	fresh := form.New(q)
	want := keys(fresh)
	fresh.Dispose()

	f := form.New(q)
	defer f.Dispose()

	name, _ := f.Question("name")
	assert.Equal(t, "anonymous", name.Value().ValueString)
	require.NoError(t, f.SetAnswer("name", "Ada"))
	tags, _ := f.Question("tags")
	_, err := tags.AddAnswer("x")
	require.NoError(t, err)
	f.ValidateAll()

	f.Reset()

	name, _ = f.Question("name")
	tags, _ = f.Question("tags")
	assert.Equal(t, "anonymous", name.Value().ValueString)
	assert.Len(t, tags.Answers(), 1)
	assert.False(t, f.Submitted())
	assert.False(t, name.Dirty())
	assert.Equal(t, want, keys(f))
	assert.Equal(t, domain.StatusInProgress, f.Response().Status)
}

func TestForm_InitialSkippedWhenHydrated(t *testing.T) {
	b := dsl.New("init")
	b.Add("name", domain.TypeString).Initial(domain.String("anonymous"))
	seed := &domain.QuestionnaireResponse{
		ResourceType: domain.ResourceTypeResponse,
		Status:       domain.StatusInProgress,
		Item: []domain.ResponseItem{
			{LinkID: "name", Answer: []domain.ResponseAnswer{{Value: domain.String("Bob")}}},
		},
	}

	f := form.New(b.Build(), form.WithResponse(seed))
	defer f.Dispose()

	name, _ := f.Question("name")
	assert.Equal(t, "Bob", name.Value().ValueString)
}

func TestForm_Dispose(t *testing.T) {
	b := dsl.New("dispose")
	b.Add("name", domain.TypeString).Required()
	f := form.New(b.Build())
	name, _ := f.Question("name")

	f.Dispose()
	f.Dispose()

	assert.ErrorIs(t, f.SetAnswer("name", "x"), domain.ErrDisposed)
	assert.ErrorIs(t, name.SetAnswer(0, "x"), domain.ErrDisposed)
	assert.False(t, f.ValidateAll())
	_, err := f.Submit()
	assert.ErrorIs(t, err, domain.ErrDisposed)
	assert.Empty(t, name.Issues(), "disposed nodes report nothing")
}

func TestForm_ReadOnly(t *testing.T) {
	b := dsl.New("ro")
	b.Add("name", domain.TypeString).Required()
	b.Add("locked", domain.TypeString).ReadOnly().Required()

	f := form.New(b.Build())
	defer f.Dispose()
	assert.ErrorIs(t, f.SetAnswer("locked", "x"), form.ErrReadOnly)
	require.NoError(t, f.SetAnswer("name", "Ada"))
	assert.True(t, f.ValidateAll(), "read-only nodes are exempt from validation")

	ro := form.New(b.Build(), form.WithReadOnly(true))
	defer ro.Dispose()
	assert.ErrorIs(t, ro.SetAnswer("name", "x"), form.ErrReadOnly)
	assert.True(t, ro.ValidateAll())
}

func TestForm_Hooks(t *testing.T) {
	var answers []*domain.AnswerEvent
	var validations []*domain.ValidationEvent
	var structure []*domain.Issue

	hooks := domain.LifecycleHooks{
		OnAnswerChange:   func(e *domain.AnswerEvent) { answers = append(answers, e) },
		OnValidate:       func(e *domain.ValidationEvent) { validations = append(validations, e) },
		OnStructureIssue: func(i *domain.Issue) { structure = append(structure, i) },
	}

	b := dsl.New("hooks")
	b.Add("name", domain.TypeString)
	table := b.Add("table", domain.TypeGroup).Control(domain.ControlGTable)
	table.Add("ok", domain.TypeString)
	table.Add("bad", domain.TypeString).Repeats()

	f := form.New(b.Build(), form.WithHooks(hooks))
	defer f.Dispose()

	require.NoError(t, f.SetAnswer("name", "Ada"))
	require.Len(t, answers, 1)
	assert.Equal(t, "name", answers[0].LinkID)
	assert.Equal(t, "Ada", answers[0].Value.ValueString)
	assert.Equal(t, domain.EventAnswerChange, answers[0].Type)

	require.Len(t, structure, 1)
	assert.Equal(t, "table", structure[0].LinkID)

	assert.False(t, f.ValidateAll(), "structure issues count toward validation")
	require.Len(t, validations, 1)
	assert.False(t, validations[0].Valid)
	assert.Equal(t, 1, validations[0].Issues)
}

func TestForm_GridPlacement(t *testing.T) {
	b := dsl.New("grid")
	grid := b.Add("grid", domain.TypeGroup).Control(domain.ControlGrid)
	grid.Add("row", domain.TypeGroup).Add("cell", domain.TypeString)
	grid.Add("stray", domain.TypeString)

	f := form.New(b.Build())
	defer f.Dispose()

	issues := f.Issues().ByCode(domain.IssueStructure)
	require.Len(t, issues, 1, "structure issues are reported without submission")
	assert.Contains(t, issues[0].Message, `"stray"`)

	response := f.Response()
	assert.Nil(t, response.Item, "tree construction still succeeds")
}
