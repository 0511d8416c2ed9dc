package form

import (
	"github.com/aretw0/formtree/pkg/domain"
)

// buildNodes constructs the nodes for items and appends them to into. Seed fragments
// are matched by linkId in document order: the first match hydrates a question or
// group, and every match becomes one occurrence of a repeating group.
func (f *Form) buildNodes(items []domain.Item, parent Node, scope *Scope, parentKey string, seed []domain.ResponseItem, hydrate bool, into *keyedList[Node]) {
	for i := range items {
		item := &items[i]
		key := childKey(parentKey, item.LinkID)
		matches := seedFragments(seed, item.LinkID)

		var n Node
		switch {
		case item.Type == domain.TypeDisplay:
			n = newDisplay(f, item, key, parent, scope)
		case item.Type == domain.TypeGroup && item.Repeats:
			n = newRepeatingGroup(f, item, key, parent, scope, matches, hydrate)
		case item.Type == domain.TypeGroup:
			n = newGroup(f, item, key, parent, scope, first(matches), hydrate, false)
		default:
			n = newQuestion(f, item, key, parent, scope, first(matches), hydrate)
		}
		into.append(key, n)
	}
}

func seedFragments(seed []domain.ResponseItem, linkID string) []domain.ResponseItem {
	var out []domain.ResponseItem
	for _, frag := range seed {
		if frag.LinkID == linkID {
			out = append(out, frag)
		}
	}
	return out
}

func first(matches []domain.ResponseItem) *domain.ResponseItem {
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// buildFragments collects the response fragments of nodes, keeping only those that
// carry content.
func buildFragments(nodes []Node) []domain.ResponseItem {
	var out []domain.ResponseItem
	for _, n := range nodes {
		for _, frag := range n.fragments() {
			if hasContent(frag) {
				out = append(out, frag)
			}
		}
	}
	return out
}

func hasContent(frag domain.ResponseItem) bool {
	if len(frag.Answer) > 0 {
		return true
	}
	for _, child := range frag.Item {
		if hasContent(child) {
			return true
		}
	}
	return false
}

// Response builds the current response document.
func (f *Form) Response() *domain.QuestionnaireResponse {
	r := &domain.QuestionnaireResponse{
		ResourceType:  domain.ResourceTypeResponse,
		ID:            f.meta.ID,
		Extension:     f.meta.Extension,
		Questionnaire: f.questionnaire.Reference(),
		Status:        f.meta.Status,
		Subject:       f.meta.Subject,
		Authored:      f.meta.Authored,
		Author:        f.meta.Author,
	}
	if r.Questionnaire == "" {
		r.Questionnaire = f.meta.Questionnaire
	}
	if r.Status == "" {
		r.Status = domain.StatusInProgress
	}
	if f.nodes != nil {
		r.Item = buildFragments(f.nodes.items())
	}
	return r
}

// responseMeta is the document-level data carried over from a seed response.
type responseMeta struct {
	ID            string
	Extension     []domain.Extension
	Questionnaire string
	Status        string
	Subject       *domain.Reference
	Author        *domain.Reference
	Authored      string
}

func metaFrom(seed *domain.QuestionnaireResponse) responseMeta {
	if seed == nil {
		return responseMeta{}
	}
	return responseMeta{
		ID:            seed.ID,
		Extension:     seed.Extension,
		Questionnaire: seed.Questionnaire,
		Status:        seed.Status,
		Subject:       seed.Subject,
		Author:        seed.Author,
		Authored:      seed.Authored,
	}
}
