package observability

import (
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by form lifecycle events.
type Metrics struct {
	Answers           *prometheus.CounterVec
	Validations       *prometheus.CounterVec
	ValidationIssues  prometheus.Histogram
	ValidationSeconds prometheus.Histogram
	ExpressionErrors  *prometheus.CounterVec
	StructureIssues   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formtree_answer_changes_total",
				Help: "Total number of answer changes made through form commands",
			},
			[]string{"link_id"},
		),
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formtree_validations_total",
				Help: "Total number of full validation passes",
			},
			[]string{"result"},
		),
		ValidationIssues: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formtree_validation_issues",
				Help:    "Number of issues reported by a validation pass",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		ValidationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formtree_validation_duration_seconds",
				Help:    "Duration of full validation passes",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		ExpressionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formtree_expression_errors_total",
				Help: "Total number of failed expression evaluations",
			},
			[]string{"slot", "kind"},
		),
		StructureIssues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formtree_structure_issues_total",
				Help: "Total number of structural problems found while building forms",
			},
			[]string{"link_id"},
		),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Answers,
		m.Validations,
		m.ValidationIssues,
		m.ValidationSeconds,
		m.ExpressionErrors,
		m.StructureIssues,
	}
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnAnswerChange: func(e *domain.AnswerEvent) {
			m.Answers.WithLabelValues(e.LinkID).Inc()
		},
		OnValidate: func(e *domain.ValidationEvent) {
			result := "invalid"
			if e.Valid {
				result = "valid"
			}
			m.Validations.WithLabelValues(result).Inc()
			m.ValidationIssues.Observe(float64(e.Issues))
			m.ValidationSeconds.Observe(e.Duration.Seconds())
		},
		OnExpressionError: func(e *domain.ExpressionEvent) {
			m.ExpressionErrors.WithLabelValues(e.Slot, e.Kind).Inc()
		},
		OnStructureIssue: func(issue *domain.Issue) {
			m.StructureIssues.WithLabelValues(issue.LinkID).Inc()
		},
	}
}
