package observability

import (
	"log/slog"

	"github.com/aretw0/formtree/pkg/domain"
)

// LoggingHooks logs every lifecycle event at Info, and failures at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnAnswerChange: func(e *domain.AnswerEvent) {
			logger.Info("answer_change",
				"link_id", e.LinkID,
				"node_key", e.NodeKey,
				"index", e.Index,
			)
		},
		OnValidate: func(e *domain.ValidationEvent) {
			logger.Info("validate",
				"valid", e.Valid,
				"issues", e.Issues,
				"duration", e.Duration,
			)
		},
		OnExpressionError: func(e *domain.ExpressionEvent) {
			logger.Warn("expression_error",
				"link_id", e.LinkID,
				"slot", e.Slot,
				"kind", e.Kind,
				"err", e.Err,
			)
		},
		OnStructureIssue: func(issue *domain.Issue) {
			logger.Warn("structure_issue",
				"link_id", issue.LinkID,
				"node_key", issue.NodeKey,
				"err", issue.Message,
			)
		},
	}
}

// Merge returns hooks that invoke each of the given hooks in order.
func Merge(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnAnswerChange = chain(out.OnAnswerChange, h.OnAnswerChange)
		out.OnValidate = chain(out.OnValidate, h.OnValidate)
		out.OnExpressionError = chain(out.OnExpressionError, h.OnExpressionError)
		out.OnStructureIssue = chain(out.OnStructureIssue, h.OnStructureIssue)
	}
	return out
}

func chain[E any](first, next func(E)) func(E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(e E) {
		first(e)
		next(e)
	}
}
