package http

import (
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/form"
)

// SessionView is the JSON representation of a live session.
type SessionView struct {
	ID       string                        `json:"id"`
	Valid    bool                          `json:"valid"`
	Response *domain.QuestionnaireResponse `json:"response"`
	Issues   domain.IssueList              `json:"issues"`
	Nodes    []NodeView                    `json:"nodes"`
}

// NodeView describes the runtime state of one node.
type NodeView struct {
	Key      string           `json:"key"`
	LinkID   string           `json:"linkId"`
	Kind     string           `json:"kind"`
	Text     string           `json:"text,omitempty"`
	Enabled  bool             `json:"enabled"`
	Hidden   bool             `json:"hidden,omitempty"`
	ReadOnly bool             `json:"readOnly,omitempty"`
	Answers  []domain.Value   `json:"answers,omitempty"`
	Options  *OptionsView     `json:"options,omitempty"`
	CanAdd   bool             `json:"canAdd,omitempty"`
	Issues   domain.IssueList `json:"issues,omitempty"`
}

// OptionsView is the resolution state of a question's answer options.
type OptionsView struct {
	Status  string                `json:"status"`
	Options []domain.AnswerOption `json:"options,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func newSessionView(id string, f *form.Form) SessionView {
	issues := f.Issues()
	r := f.Response()
	if r.ID == "" {
		r.ID = id
	}
	v := SessionView{
		ID:       id,
		Valid:    len(issues) == 0,
		Response: r,
		Issues:   issues,
		Nodes:    []NodeView{},
	}
	if v.Issues == nil {
		v.Issues = domain.IssueList{}
	}
	f.Walk(func(n form.Node) bool {
		v.Nodes = append(v.Nodes, newNodeView(n))
		return true
	})
	return v
}

func newNodeView(n form.Node) NodeView {
	nv := NodeView{
		Key:      n.Key(),
		LinkID:   n.LinkID(),
		Kind:     n.Kind().String(),
		Text:     n.Text(),
		Enabled:  n.IsEnabled(),
		Hidden:   n.Hidden(),
		ReadOnly: n.ReadOnly(),
		Issues:   n.Issues(),
	}
	switch node := n.(type) {
	case *form.Question:
		nv.Answers = node.Values()
		nv.CanAdd = node.CanAddAnswer()
		if state := node.Options(); state.Status != form.OptionsNone {
			ov := &OptionsView{Status: state.Status.String(), Options: state.Options}
			if state.Err != nil {
				ov.Error = state.Err.Error()
			}
			nv.Options = ov
		}
	case *form.RepeatingGroup:
		nv.CanAdd = node.CanAdd()
	}
	return nv
}
