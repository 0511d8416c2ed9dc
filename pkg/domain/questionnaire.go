package domain

import "strings"

// ItemType is the declared type of a questionnaire item.
type ItemType string

const (
	TypeGroup       ItemType = "group"
	TypeDisplay     ItemType = "display"
	TypeBoolean     ItemType = "boolean"
	TypeDecimal     ItemType = "decimal"
	TypeInteger     ItemType = "integer"
	TypeDate        ItemType = "date"
	TypeDateTime    ItemType = "dateTime"
	TypeTime        ItemType = "time"
	TypeString      ItemType = "string"
	TypeText        ItemType = "text"
	TypeURL         ItemType = "url"
	TypeCoding      ItemType = "coding"
	TypeChoice      ItemType = "choice"
	TypeOpenChoice  ItemType = "open-choice"
	TypeAttachment  ItemType = "attachment"
	TypeReference   ItemType = "reference"
	TypeQuantity    ItemType = "quantity"
	TypeUnsupported ItemType = ""
)

// IsQuestion reports whether items of this type carry answers.
func (t ItemType) IsQuestion() bool {
	return t != TypeGroup && t != TypeDisplay
}

// Questionnaire is the immutable form template.
type Questionnaire struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	URL          string      `json:"url,omitempty"`
	Version      string      `json:"version,omitempty"`
	Name         string      `json:"name,omitempty"`
	Title        string      `json:"title,omitempty"`
	Status       string      `json:"status,omitempty"`
	Extension    []Extension `json:"extension,omitempty"`
	Item         []Item      `json:"item,omitempty"`
}

// Reference returns the value used in QuestionnaireResponse.questionnaire:
// the canonical url (with |version when set), otherwise a local Questionnaire/<id> reference.
func (q *Questionnaire) Reference() string {
	if q.URL != "" {
		if q.Version != "" {
			return q.URL + "|" + q.Version
		}
		return q.URL
	}
	if q.ID != "" {
		return "Questionnaire/" + q.ID
	}
	return ""
}

// Matches reports whether ref addresses q: its id, "Questionnaire/<id>", its
// canonical url, or "url|version".
func (q *Questionnaire) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	switch ref {
	case q.ID, "Questionnaire/" + q.ID:
		return q.ID != ""
	case q.URL:
		return true
	}
	url, version, ok := strings.Cut(ref, "|")
	return ok && url == q.URL && version == q.Version
}

// Item is one node of the questionnaire template.
type Item struct {
	LinkID         string         `json:"linkId"`
	Definition     string         `json:"definition,omitempty"`
	Prefix         string         `json:"prefix,omitempty"`
	Text           string         `json:"text,omitempty"`
	Type           ItemType       `json:"type"`
	EnableWhen     []EnableWhen   `json:"enableWhen,omitempty"`
	EnableBehavior string         `json:"enableBehavior,omitempty"`
	Required       bool           `json:"required,omitempty"`
	Repeats        bool           `json:"repeats,omitempty"`
	ReadOnly       bool           `json:"readOnly,omitempty"`
	MaxLength      *int           `json:"maxLength,omitempty"`
	AnswerValueSet string         `json:"answerValueSet,omitempty"`
	AnswerOption   []AnswerOption `json:"answerOption,omitempty"`
	Initial        []Initial      `json:"initial,omitempty"`
	Extension      []Extension    `json:"extension,omitempty"`
	Item           []Item         `json:"item,omitempty"`
}

// FindExtension returns the first extension with the given url.
func (it *Item) FindExtension(url string) (*Extension, bool) {
	return findExtension(it.Extension, url)
}

// Extensions returns every extension with the given url, in declaration order.
func (it *Item) Extensions(url string) []*Extension {
	var out []*Extension
	for i := range it.Extension {
		if it.Extension[i].URL == url {
			out = append(out, &it.Extension[i])
		}
	}
	return out
}

// Hidden reports the template-declared hidden flag.
func (it *Item) Hidden() bool {
	ext, ok := it.FindExtension(ExtHidden)
	return ok && ext.ValueBoolean != nil && *ext.ValueBoolean
}

// ItemControl returns the first itemControl code, or "".
func (it *Item) ItemControl() string {
	ext, ok := it.FindExtension(ExtItemControl)
	if !ok || ext.ValueCodeableConcept == nil || len(ext.ValueCodeableConcept.Coding) == 0 {
		return ""
	}
	return ext.ValueCodeableConcept.Coding[0].Code
}

// EnableWhen is a declarative enablement condition.
type EnableWhen struct {
	Question        string     `json:"question"`
	Operator        string     `json:"operator"`
	AnswerBoolean   *bool      `json:"answerBoolean,omitempty"`
	AnswerDecimal   *float64   `json:"answerDecimal,omitempty"`
	AnswerInteger   *int64     `json:"answerInteger,omitempty"`
	AnswerDate      string     `json:"answerDate,omitempty"`
	AnswerDateTime  string     `json:"answerDateTime,omitempty"`
	AnswerTime      string     `json:"answerTime,omitempty"`
	AnswerString    string     `json:"answerString,omitempty"`
	AnswerCoding    *Coding    `json:"answerCoding,omitempty"`
	AnswerQuantity  *Quantity  `json:"answerQuantity,omitempty"`
	AnswerReference *Reference `json:"answerReference,omitempty"`
}

// Answer returns the comparison operand as a Value.
func (e EnableWhen) Answer() Value {
	return Value{
		ValueBoolean:   e.AnswerBoolean,
		ValueDecimal:   e.AnswerDecimal,
		ValueInteger:   e.AnswerInteger,
		ValueDate:      e.AnswerDate,
		ValueDateTime:  e.AnswerDateTime,
		ValueTime:      e.AnswerTime,
		ValueString:    e.AnswerString,
		ValueCoding:    e.AnswerCoding,
		ValueQuantity:  e.AnswerQuantity,
		ValueReference: e.AnswerReference,
	}
}

// Enable-when operators and behaviors.
const (
	OpExists       = "exists"
	OpEqual        = "="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="

	BehaviorAll = "all"
	BehaviorAny = "any"
)

// AnswerOption is one permitted answer.
type AnswerOption struct {
	Value
	InitialSelected bool `json:"initialSelected,omitempty"`
}

// Initial is a seed value for a question.
type Initial struct {
	Value
}

// Expression is an embedded computable expression.
type Expression struct {
	Name        string `json:"name,omitempty"`
	Language    string `json:"language"`
	Expression  string `json:"expression,omitempty"`
	Description string `json:"description,omitempty"`
}

// Extension carries behavior declarations on items and questionnaires.
type Extension struct {
	URL                  string           `json:"url"`
	Extension            []Extension      `json:"extension,omitempty"`
	ValueExpression      *Expression      `json:"valueExpression,omitempty"`
	ValueCode            string           `json:"valueCode,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	Value
}

// Nested returns the first nested extension with the given url.
func (e *Extension) Nested(url string) (*Extension, bool) {
	return findExtension(e.Extension, url)
}

// DynamicExpression returns the expression feeding a bound extension: its own
// valueExpression, or a nested cqf-expression.
func (e *Extension) DynamicExpression() *Expression {
	if e.ValueExpression != nil {
		return e.ValueExpression
	}
	if nested, ok := e.Nested(ExtCqfExpression); ok {
		return nested.ValueExpression
	}
	return nil
}

func findExtension(exts []Extension, url string) (*Extension, bool) {
	for i := range exts {
		if exts[i].URL == url {
			return &exts[i], true
		}
	}
	return nil, false
}
