package dsl

import "github.com/aretw0/formtree/pkg/domain"

// ItemBuilder provides a fluent API for configuring an item.
type ItemBuilder struct {
	item     domain.Item
	children []*ItemBuilder
}

// Add appends a child item and returns its builder.
func (n *ItemBuilder) Add(linkID string, itemType domain.ItemType) *ItemBuilder {
	child := &ItemBuilder{item: domain.Item{LinkID: linkID, Type: itemType}}
	n.children = append(n.children, child)
	return child
}

// Text sets the label of the item.
func (n *ItemBuilder) Text(text string) *ItemBuilder {
	n.item.Text = text
	return n
}

// Required marks the item as required.
func (n *ItemBuilder) Required() *ItemBuilder {
	n.item.Required = true
	return n
}

// Repeats allows multiple answers or occurrences.
func (n *ItemBuilder) Repeats() *ItemBuilder {
	n.item.Repeats = true
	return n
}

// ReadOnly prevents user edits.
func (n *ItemBuilder) ReadOnly() *ItemBuilder {
	n.item.ReadOnly = true
	return n
}

// MaxLength limits string answers.
func (n *ItemBuilder) MaxLength(length int) *ItemBuilder {
	n.item.MaxLength = &length
	return n
}

// Hidden sets the questionnaire-hidden extension.
func (n *ItemBuilder) Hidden() *ItemBuilder {
	n.ext(domain.ExtHidden).Value = domain.Bool(true)
	return n
}

// Control sets the itemControl code (e.g., "gtable", "grid").
func (n *ItemBuilder) Control(code string) *ItemBuilder {
	n.ext(domain.ExtItemControl).ValueCodeableConcept = &domain.CodeableConcept{
		Coding: []domain.Coding{{System: "http://hl7.org/fhir/questionnaire-item-control", Code: code}},
	}
	return n
}

// Options adds static answer options.
func (n *ItemBuilder) Options(values ...domain.Value) *ItemBuilder {
	for _, v := range values {
		n.item.AnswerOption = append(n.item.AnswerOption, domain.AnswerOption{Value: v})
	}
	return n
}

// Codings adds static coding answer options.
func (n *ItemBuilder) Codings(codings ...domain.Coding) *ItemBuilder {
	for _, c := range codings {
		n.item.AnswerOption = append(n.item.AnswerOption, domain.AnswerOption{Value: domain.CodingValue(c)})
	}
	return n
}

// ValueSet binds the options to a value set canonical.
func (n *ItemBuilder) ValueSet(url string) *ItemBuilder {
	n.item.AnswerValueSet = url
	return n
}

// Initial adds initial values.
func (n *ItemBuilder) Initial(values ...domain.Value) *ItemBuilder {
	for _, v := range values {
		n.item.Initial = append(n.item.Initial, domain.Initial{Value: v})
	}
	return n
}

// EnableWhen adds a declarative enablement condition.
func (n *ItemBuilder) EnableWhen(question, operator string, answer domain.Value) *ItemBuilder {
	n.item.EnableWhen = append(n.item.EnableWhen, domain.EnableWhen{
		Question:        question,
		Operator:        operator,
		AnswerBoolean:   answer.ValueBoolean,
		AnswerDecimal:   answer.ValueDecimal,
		AnswerInteger:   answer.ValueInteger,
		AnswerDate:      answer.ValueDate,
		AnswerDateTime:  answer.ValueDateTime,
		AnswerTime:      answer.ValueTime,
		AnswerString:    answer.ValueString,
		AnswerCoding:    answer.ValueCoding,
		AnswerQuantity:  answer.ValueQuantity,
		AnswerReference: answer.ValueReference,
	})
	return n
}

// EnableAny switches enableWhen evaluation to "any condition".
func (n *ItemBuilder) EnableAny() *ItemBuilder {
	n.item.EnableBehavior = domain.BehaviorAny
	return n
}

// EnableWhenExpression sets the enableWhenExpression.
func (n *ItemBuilder) EnableWhenExpression(expression string) *ItemBuilder {
	n.ext(domain.ExtEnableWhenExpression).ValueExpression = fhirpath("", expression)
	return n
}

// Calculated sets the calculatedExpression.
func (n *ItemBuilder) Calculated(expression string) *ItemBuilder {
	n.ext(domain.ExtCalculatedExpression).ValueExpression = fhirpath("", expression)
	return n
}

// InitialExpression sets the initialExpression.
func (n *ItemBuilder) InitialExpression(expression string) *ItemBuilder {
	n.ext(domain.ExtInitialExpression).ValueExpression = fhirpath("", expression)
	return n
}

// AnswerExpression sets the answerExpression feeding the option list.
func (n *ItemBuilder) AnswerExpression(expression string) *ItemBuilder {
	n.ext(domain.ExtAnswerExpression).ValueExpression = fhirpath("", expression)
	return n
}

// Variable declares a variable visible to the item and its descendants.
func (n *ItemBuilder) Variable(name, expression string) *ItemBuilder {
	n.item.Extension = append(n.item.Extension, domain.Extension{
		URL:             domain.ExtVariable,
		ValueExpression: fhirpath(name, expression),
	})
	return n
}

// MinOccurs sets the static minimum occurrence count.
func (n *ItemBuilder) MinOccurs(count int64) *ItemBuilder {
	n.ext(domain.ExtMinOccurs).Value = domain.Integer(count)
	return n
}

// MaxOccurs sets the static maximum occurrence count.
func (n *ItemBuilder) MaxOccurs(count int64) *ItemBuilder {
	n.ext(domain.ExtMaxOccurs).Value = domain.Integer(count)
	return n
}

// MinOccursExpression feeds the minimum occurrence count from an expression.
func (n *ItemBuilder) MinOccursExpression(expression string) *ItemBuilder {
	n.dynamic(domain.ExtMinOccurs, expression)
	return n
}

// MaxOccursExpression feeds the maximum occurrence count from an expression.
func (n *ItemBuilder) MaxOccursExpression(expression string) *ItemBuilder {
	n.dynamic(domain.ExtMaxOccurs, expression)
	return n
}

// MinValue sets the static lower bound.
func (n *ItemBuilder) MinValue(v domain.Value) *ItemBuilder {
	n.ext(domain.ExtMinValue).Value = v
	return n
}

// MaxValue sets the static upper bound.
func (n *ItemBuilder) MaxValue(v domain.Value) *ItemBuilder {
	n.ext(domain.ExtMaxValue).Value = v
	return n
}

// MinValueExpression feeds the lower bound from an expression.
func (n *ItemBuilder) MinValueExpression(expression string) *ItemBuilder {
	n.dynamic(domain.ExtMinValue, expression)
	return n
}

// MaxValueExpression feeds the upper bound from an expression.
func (n *ItemBuilder) MaxValueExpression(expression string) *ItemBuilder {
	n.dynamic(domain.ExtMaxValue, expression)
	return n
}

// MinLength sets the minimum string length.
func (n *ItemBuilder) MinLength(length int64) *ItemBuilder {
	n.ext(domain.ExtMinLength).Value = domain.Integer(length)
	return n
}

// MaxDecimalPlaces limits decimal precision.
func (n *ItemBuilder) MaxDecimalPlaces(places int64) *ItemBuilder {
	n.ext(domain.ExtMaxDecimalPlaces).Value = domain.Integer(places)
	return n
}

// MinQuantity sets the quantity-specific lower bound.
func (n *ItemBuilder) MinQuantity(q domain.Quantity) *ItemBuilder {
	n.ext(domain.ExtMinQuantity).Value = domain.QuantityValue(q)
	return n
}

// MaxQuantity sets the quantity-specific upper bound.
func (n *ItemBuilder) MaxQuantity(q domain.Quantity) *ItemBuilder {
	n.ext(domain.ExtMaxQuantity).Value = domain.QuantityValue(q)
	return n
}

// MimeTypes restricts attachment content types.
func (n *ItemBuilder) MimeTypes(types ...string) *ItemBuilder {
	for _, t := range types {
		n.item.Extension = append(n.item.Extension, domain.Extension{URL: domain.ExtMimeType, ValueCode: t})
	}
	return n
}

// MaxSize limits attachment size in bytes.
func (n *ItemBuilder) MaxSize(bytes int64) *ItemBuilder {
	n.ext(domain.ExtMaxSize).Value = domain.Integer(bytes)
	return n
}

// Extension appends a raw extension.
func (n *ItemBuilder) Extension(ext domain.Extension) *ItemBuilder {
	n.item.Extension = append(n.item.Extension, ext)
	return n
}

// Build returns the underlying domain.Item with its children.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *ItemBuilder) Build() domain.Item {
	item := n.item
	item.Extension = append([]domain.Extension(nil), n.item.Extension...)
	item.Item = buildItems(n.children)
	return item
}

// ext returns the extension with url, creating it when missing.
func (n *ItemBuilder) ext(url string) *domain.Extension {
	for i := range n.item.Extension {
		if n.item.Extension[i].URL == url {
			return &n.item.Extension[i]
		}
	}
	n.item.Extension = append(n.item.Extension, domain.Extension{URL: url})
	return &n.item.Extension[len(n.item.Extension)-1]
}

func (n *ItemBuilder) dynamic(url, expression string) {
	n.ext(url).Extension = []domain.Extension{{
		URL:             domain.ExtCqfExpression,
		ValueExpression: fhirpath("", expression),
	}}
}
