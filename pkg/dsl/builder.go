package dsl

import (
	"fmt"

	"github.com/aretw0/formtree/pkg/adapters/memory"
	"github.com/aretw0/formtree/pkg/domain"
)

// Builder manages the questionnaire construction.
type Builder struct {
	q     domain.Questionnaire
	items []*ItemBuilder
}

// New creates a new questionnaire builder.
func New(id string) *Builder {
	return &Builder{
		q: domain.Questionnaire{
			ResourceType: "Questionnaire",
			ID:           id,
			Status:       "active",
		},
	}
}

// URL sets the canonical url (and optional version).
func (b *Builder) URL(url string, version ...string) *Builder {
	b.q.URL = url
	if len(version) > 0 {
		b.q.Version = version[0]
	}
	return b
}

// Title sets the human-readable title.
func (b *Builder) Title(title string) *Builder {
	b.q.Title = title
	return b
}

// Variable declares a questionnaire-level variable evaluated against %resource.
func (b *Builder) Variable(name, expression string) *Builder {
	b.q.Extension = append(b.q.Extension, domain.Extension{
		URL:             domain.ExtVariable,
		ValueExpression: fhirpath(name, expression),
	})
	return b
}

// Add appends a top-level item.
func (b *Builder) Add(linkID string, itemType domain.ItemType) *ItemBuilder {
	ib := &ItemBuilder{item: domain.Item{LinkID: linkID, Type: itemType}}
	b.items = append(b.items, ib)
	return ib
}

// Build returns the questionnaire. The builder can keep being used afterwards.
func (b *Builder) Build() *domain.Questionnaire {
	q := b.q
	q.Extension = append([]domain.Extension(nil), b.q.Extension...)
	q.Item = buildItems(b.items)
	return &q
}

// Loader compiles the questionnaire into a MemoryLoader.
func (b *Builder) Loader() (*memory.Loader, error) {
	loader, err := memory.NewLoader(b.Build())
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

func buildItems(builders []*ItemBuilder) []domain.Item {
	if len(builders) == 0 {
		return nil
	}
	items := make([]domain.Item, 0, len(builders))
	for _, ib := range builders {
		items = append(items, ib.Build())
	}
	return items
}

func fhirpath(name, expression string) *domain.Expression {
	return &domain.Expression{
		Name:       name,
		Language:   domain.ExpressionLanguageFHIRPath,
		Expression: expression,
	}
}
