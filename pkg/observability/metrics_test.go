package observability_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/aretw0/formtree/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newForm(t *testing.T, hooks domain.LifecycleHooks) *form.Form {
	t.Helper()
	b := dsl.New("observed")
	b.Add("name", domain.TypeString).Required()
	f := form.New(b.Build(), form.WithHooks(hooks))
	t.Cleanup(f.Dispose)
	return f
}

func TestMetrics_Answers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	f := newForm(t, m.Hooks())
	require.NoError(t, f.SetAnswer("name", "Ada"))
	require.NoError(t, f.SetAnswer("name", "Grace"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Answers.WithLabelValues("name")))

	assert.True(t, f.ValidateAll())
	require.NoError(t, f.SetAnswer("name", nil))
	assert.False(t, f.ValidateAll())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("invalid")))

	count, err := testutil.GatherAndCount(reg, "formtree_validation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_Diagnostics(t *testing.T) {
	m, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	b := dsl.New("diagnostics")
	b.Add("broken", domain.TypeString).EnableWhenExpression("%resource.item.where(")
	b.Add("grid", domain.TypeGroup).Control(domain.ControlGrid).Add("cell", domain.TypeString)
	f := form.New(b.Build(), form.WithHooks(m.Hooks()))
	defer f.Dispose()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExpressionErrors.WithLabelValues("enableWhen", "syntax")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StructureIssues.WithLabelValues("grid")))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	m, err := observability.NewMetrics(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	var seen []string
	custom := domain.LifecycleHooks{
		OnAnswerChange: func(e *domain.AnswerEvent) { seen = append(seen, e.LinkID) },
	}

	f := newForm(t, observability.Merge(m.Hooks(), observability.LoggingHooks(logger), custom))
	require.NoError(t, f.SetAnswer("name", "Ada"))

	assert.Equal(t, []string{"name"}, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("name")))
	assert.Contains(t, buf.String(), `"msg":"answer_change"`)
}
