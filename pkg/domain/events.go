package domain

import "time"

// EventType defines the category of the event.
type EventType string

const (
	EventAnswerChange    EventType = "answer_change"
	EventValidate        EventType = "validate"
	EventExpressionError EventType = "expression_error"
	EventStructureIssue  EventType = "structure_issue"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// AnswerEvent is emitted after a user command changes an answer.
type AnswerEvent struct {
	EventBase
	LinkID  string `json:"link_id"`
	NodeKey string `json:"node_key"`
	Index   int    `json:"index"`
	Value   Value  `json:"value"`
}

// ValidationEvent is emitted after a full validation pass.
type ValidationEvent struct {
	EventBase
	Valid    bool          `json:"valid"`
	Issues   int           `json:"issues"`
	Duration time.Duration `json:"duration"`
}

// ExpressionEvent is emitted when an expression slot fails to evaluate.
type ExpressionEvent struct {
	EventBase
	LinkID string `json:"link_id"`
	Slot   string `json:"slot"`
	Kind   string `json:"kind"`
	Err    error  `json:"-"`
}

// LifecycleHooks defines callbacks for form observability.
type LifecycleHooks struct {
	OnAnswerChange    func(*AnswerEvent)
	OnValidate        func(*ValidationEvent)
	OnExpressionError func(*ExpressionEvent)
	OnStructureIssue  func(*Issue)
}
