package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/ports"
)

// Mask replaces string answers of sensitive items.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ResponseStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks answers of items whose linkId matches
// one of the patterns before they reach the store. String answers become Mask; answers
// of any other type lose their value, and are dropped unless they carry nested items.
// Masking is one way: Load returns the masked document.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ResponseStore) ports.ResponseStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, response *domain.QuestionnaireResponse) error {
	// The caller keeps using its document; mask a copy.
	cloned, err := clone(response)
	if err != nil {
		return err
	}
	cloned.Item = m.maskItems(cloned.Item)
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.QuestionnaireResponse, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) sensitive(linkID string) bool {
	for _, p := range m.patterns {
		if p.MatchString(linkID) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) maskItems(items []domain.ResponseItem) []domain.ResponseItem {
	for i := range items {
		item := &items[i]
		mask := m.sensitive(item.LinkID)

		answers := item.Answer[:0]
		for _, ans := range item.Answer {
			ans.Item = m.maskItems(ans.Item)
			if mask {
				if ans.ValueString != "" {
					ans.Value = domain.String(Mask)
				} else {
					ans.Value = domain.Value{}
				}
			}
			if !ans.Value.IsZero() || len(ans.Item) > 0 {
				answers = append(answers, ans)
			}
		}
		item.Answer = answers
		item.Item = m.maskItems(item.Item)
	}
	return items
}
