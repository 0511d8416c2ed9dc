package schema

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
	"github.com/mitchellh/mapstructure"
)

// Type defines the contract for answer values of one questionnaire item type.
type Type interface {
	// Name returns the item type name (e.g., "integer", "quantity").
	Name() string
	// Field returns the value[x] field used to serialize answers of this type.
	Field() string
	// Coerce converts a loosely typed input into a Value of this type.
	// nil coerces to the empty Value.
	Coerce(value any) (domain.Value, error)
	// Validate checks the lexical form of an already coerced value.
	Validate(v domain.Value) error
}

// --- Built-in Type Implementations ---

// BooleanType handles boolean answers.
type BooleanType struct{}

func (t *BooleanType) Name() string  { return string(domain.TypeBoolean) }
func (t *BooleanType) Field() string { return "valueBoolean" }

func (t *BooleanType) Coerce(value any) (domain.Value, error) {
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case bool:
		return domain.Bool(v), nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.Value{}, coercionErr(t, value)
		}
		return domain.Bool(b), nil
	case domain.Value:
		if v.IsZero() || v.ValueBoolean != nil {
			return domain.Value{ValueBoolean: v.ValueBoolean}, nil
		}
	}
	return domain.Value{}, coercionErr(t, value)
}

func (t *BooleanType) Validate(domain.Value) error { return nil }

// DecimalType handles decimal answers.
type DecimalType struct{}

func (t *DecimalType) Name() string  { return string(domain.TypeDecimal) }
func (t *DecimalType) Field() string { return "valueDecimal" }

func (t *DecimalType) Coerce(value any) (domain.Value, error) {
	if v, ok := value.(domain.Value); ok {
		switch {
		case v.IsZero():
			return domain.Value{}, nil
		case v.ValueDecimal != nil:
			return domain.Decimal(*v.ValueDecimal), nil
		case v.ValueInteger != nil:
			return domain.Decimal(float64(*v.ValueInteger)), nil
		}
		return domain.Value{}, coercionErr(t, value)
	}
	if value == nil {
		return domain.Value{}, nil
	}
	f, ok := toFloat(value)
	if !ok {
		return domain.Value{}, coercionErr(t, value)
	}
	return domain.Decimal(f), nil
}

func (t *DecimalType) Validate(v domain.Value) error {
	if v.ValueDecimal != nil && (math.IsNaN(*v.ValueDecimal) || math.IsInf(*v.ValueDecimal, 0)) {
		return fmt.Errorf("decimal must be finite")
	}
	return nil
}

// IntegerType handles integer answers.
type IntegerType struct{}

func (t *IntegerType) Name() string  { return string(domain.TypeInteger) }
func (t *IntegerType) Field() string { return "valueInteger" }

func (t *IntegerType) Coerce(value any) (domain.Value, error) {
	if v, ok := value.(domain.Value); ok {
		switch {
		case v.IsZero():
			return domain.Value{}, nil
		case v.ValueInteger != nil:
			return domain.Integer(*v.ValueInteger), nil
		case v.ValueDecimal != nil && *v.ValueDecimal == math.Trunc(*v.ValueDecimal):
			return domain.Integer(int64(*v.ValueDecimal)), nil
		}
		return domain.Value{}, coercionErr(t, value)
	}
	if value == nil {
		return domain.Value{}, nil
	}
	f, ok := toFloat(value)
	if !ok || f != math.Trunc(f) {
		return domain.Value{}, coercionErr(t, value)
	}
	return domain.Integer(int64(f)), nil
}

func (t *IntegerType) Validate(domain.Value) error { return nil }

// TemporalType handles date, dateTime and time answers. Values are kept in their
// lexical form; Validate reports malformed input.
type TemporalType struct {
	itemType domain.ItemType
}

func (t *TemporalType) Name() string { return string(t.itemType) }

func (t *TemporalType) Field() string {
	switch t.itemType {
	case domain.TypeDate:
		return "valueDate"
	case domain.TypeDateTime:
		return "valueDateTime"
	default:
		return "valueTime"
	}
}

func (t *TemporalType) Coerce(value any) (domain.Value, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case string:
		s = strings.TrimSpace(v)
	case fhirpath.Date:
		s = v.String()
	case fhirpath.DateTime:
		s = v.String()
	case fhirpath.Time:
		s = v.String()
	case domain.Value:
		switch {
		case v.IsZero():
			return domain.Value{}, nil
		case v.ValueDate != "":
			s = v.ValueDate
		case v.ValueDateTime != "":
			s = v.ValueDateTime
		case v.ValueTime != "":
			s = v.ValueTime
		default:
			return domain.Value{}, coercionErr(t, value)
		}
	default:
		return domain.Value{}, coercionErr(t, value)
	}
	if s == "" {
		return domain.Value{}, nil
	}
	switch t.itemType {
	case domain.TypeDate:
		return domain.Value{ValueDate: s}, nil
	case domain.TypeDateTime:
		return domain.Value{ValueDateTime: s}, nil
	default:
		return domain.Value{ValueTime: s}, nil
	}
}

func (t *TemporalType) Validate(v domain.Value) error {
	var err error
	switch t.itemType {
	case domain.TypeDate:
		if v.ValueDate != "" {
			_, err = fhirpath.ParseDate(v.ValueDate)
		}
	case domain.TypeDateTime:
		if v.ValueDateTime != "" {
			_, err = fhirpath.ParseDateTime(v.ValueDateTime)
		}
	default:
		if v.ValueTime != "" {
			_, err = fhirpath.ParseTime(v.ValueTime)
		}
	}
	return err
}

// StringType handles string, text and url answers.
type StringType struct {
	itemType domain.ItemType
}

func (t *StringType) Name() string { return string(t.itemType) }

func (t *StringType) Field() string {
	if t.itemType == domain.TypeURL {
		return "valueUri"
	}
	return "valueString"
}

func (t *StringType) Coerce(value any) (domain.Value, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case string:
		s = v
	case domain.Value:
		switch {
		case v.IsZero():
			return domain.Value{}, nil
		case v.ValueString != "":
			s = v.ValueString
		case v.ValueURI != "":
			s = v.ValueURI
		default:
			return domain.Value{}, coercionErr(t, value)
		}
	default:
		return domain.Value{}, coercionErr(t, value)
	}
	if t.itemType == domain.TypeURL {
		return domain.Value{ValueURI: s}, nil
	}
	return domain.String(s), nil
}

func (t *StringType) Validate(v domain.Value) error {
	if t.itemType != domain.TypeURL || v.ValueURI == "" {
		return nil
	}
	u, err := url.Parse(v.ValueURI)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("invalid url %q", v.ValueURI)
	}
	return nil
}

// CodingType handles coding, choice and open-choice answers.
// Open-choice additionally accepts free-text strings. A choice built by ForItem also
// accepts the value[x] kinds its answer options use (string, integer, date, time or
// reference); ParseType alone knows no options and accepts codings only.
type CodingType struct {
	itemType domain.ItemType
	kinds    map[string]bool
}

// choiceKinds are the value[x] fields an answerOption may carry.
var choiceKinds = []string{"valueCoding", "valueString", "valueInteger", "valueDate", "valueTime", "valueReference"}

func (t *CodingType) Name() string  { return string(t.itemType) }
func (t *CodingType) Field() string { return "valueCoding" }

// Open reports whether free text is accepted.
func (t *CodingType) Open() bool { return t.itemType == domain.TypeOpenChoice }

// Accepts reports whether answers may carry the value[x] field.
func (t *CodingType) Accepts(field string) bool {
	if field == "valueCoding" || (field == "valueString" && t.Open()) {
		return true
	}
	return t.itemType != domain.TypeCoding && t.kinds[field]
}

func (t *CodingType) Coerce(value any) (domain.Value, error) {
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case domain.Coding:
		return domain.CodingValue(v), nil
	case *domain.Coding:
		if v == nil {
			return domain.Value{}, nil
		}
		return domain.CodingValue(*v), nil
	case domain.Reference:
		if t.Accepts("valueReference") {
			return domain.Value{ValueReference: &v}, nil
		}
	case string:
		if out, ok := t.coerceString(strings.TrimSpace(v)); ok {
			return out, nil
		}
	case fhirpath.Date:
		if t.Accepts("valueDate") {
			return domain.Value{ValueDate: v.String()}, nil
		}
	case fhirpath.Time:
		if t.Accepts("valueTime") {
			return domain.Value{ValueTime: v.String()}, nil
		}
	case map[string]any:
		if _, ok := v["reference"]; ok && t.Accepts("valueReference") {
			var r domain.Reference
			if err := decode(v, &r); err != nil {
				return domain.Value{}, coercionErr(t, value)
			}
			return domain.Value{ValueReference: &r}, nil
		}
		var c domain.Coding
		if err := decode(v, &c); err != nil {
			return domain.Value{}, coercionErr(t, value)
		}
		return domain.CodingValue(c), nil
	case domain.Value:
		if v.IsZero() {
			return domain.Value{}, nil
		}
		if field := v.Field(); t.Accepts(field) {
			return single(v, field), nil
		}
	default:
		if f, ok := toFloat(value); ok && f == math.Trunc(f) && t.Accepts("valueInteger") {
			return domain.Integer(int64(f)), nil
		}
	}
	return domain.Value{}, coercionErr(t, value)
}

// coerceString maps free input onto the first option kind that can hold it.
func (t *CodingType) coerceString(s string) (domain.Value, bool) {
	if s == "" {
		return domain.Value{}, true
	}
	if t.Accepts("valueString") {
		return domain.String(s), true
	}
	if t.Accepts("valueInteger") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return domain.Integer(n), true
		}
	}
	switch {
	case t.Accepts("valueDate") && validLexical(fhirpath.ParseDate, s):
		return domain.Value{ValueDate: s}, true
	case t.Accepts("valueTime") && validLexical(fhirpath.ParseTime, s):
		return domain.Value{ValueTime: s}, true
	}
	return domain.Value{}, false
}

func (t *CodingType) Validate(v domain.Value) error {
	switch {
	case v.ValueDate != "":
		_, err := fhirpath.ParseDate(v.ValueDate)
		return err
	case v.ValueTime != "":
		_, err := fhirpath.ParseTime(v.ValueTime)
		return err
	}
	return nil
}

func validLexical[T any](parse func(string) (T, error), s string) bool {
	_, err := parse(s)
	return err == nil
}

// single returns a copy of v holding only field.
func single(v domain.Value, field string) domain.Value {
	switch field {
	case "valueCoding":
		return domain.CodingValue(*v.ValueCoding)
	case "valueString":
		return domain.String(v.ValueString)
	case "valueInteger":
		return domain.Integer(*v.ValueInteger)
	case "valueDate":
		return domain.Value{ValueDate: v.ValueDate}
	case "valueTime":
		return domain.Value{ValueTime: v.ValueTime}
	case "valueReference":
		r := *v.ValueReference
		return domain.Value{ValueReference: &r}
	}
	return v
}

// AttachmentType handles attachment answers.
type AttachmentType struct{}

func (t *AttachmentType) Name() string  { return string(domain.TypeAttachment) }
func (t *AttachmentType) Field() string { return "valueAttachment" }

func (t *AttachmentType) Coerce(value any) (domain.Value, error) {
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case domain.Attachment:
		return domain.AttachmentValue(v), nil
	case map[string]any:
		var a domain.Attachment
		if err := decode(v, &a); err != nil {
			return domain.Value{}, coercionErr(t, value)
		}
		return domain.AttachmentValue(a), nil
	case domain.Value:
		if v.IsZero() {
			return domain.Value{}, nil
		}
		if v.ValueAttachment != nil {
			return domain.AttachmentValue(*v.ValueAttachment), nil
		}
	}
	return domain.Value{}, coercionErr(t, value)
}

func (t *AttachmentType) Validate(domain.Value) error { return nil }

// ReferenceType handles reference answers.
type ReferenceType struct{}

func (t *ReferenceType) Name() string  { return string(domain.TypeReference) }
func (t *ReferenceType) Field() string { return "valueReference" }

func (t *ReferenceType) Coerce(value any) (domain.Value, error) {
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case string:
		return domain.Value{ValueReference: &domain.Reference{Reference: v}}, nil
	case domain.Reference:
		return domain.Value{ValueReference: &v}, nil
	case map[string]any:
		var r domain.Reference
		if err := decode(v, &r); err != nil {
			return domain.Value{}, coercionErr(t, value)
		}
		return domain.Value{ValueReference: &r}, nil
	case domain.Value:
		if v.IsZero() {
			return domain.Value{}, nil
		}
		if v.ValueReference != nil {
			return domain.Value{ValueReference: v.ValueReference}, nil
		}
	}
	return domain.Value{}, coercionErr(t, value)
}

func (t *ReferenceType) Validate(domain.Value) error { return nil }

// QuantityType handles quantity answers.
type QuantityType struct{}

func (t *QuantityType) Name() string  { return string(domain.TypeQuantity) }
func (t *QuantityType) Field() string { return "valueQuantity" }

func (t *QuantityType) Coerce(value any) (domain.Value, error) {
	switch v := value.(type) {
	case nil:
		return domain.Value{}, nil
	case domain.Quantity:
		return domain.QuantityValue(v), nil
	case fhirpath.Quantity:
		val := v.Value
		return domain.QuantityValue(domain.Quantity{Value: &val, Code: v.Unit, Unit: v.Unit, System: v.System}), nil
	case map[string]any:
		var q domain.Quantity
		if err := decode(v, &q); err != nil {
			return domain.Value{}, coercionErr(t, value)
		}
		return domain.QuantityValue(q), nil
	case domain.Value:
		if v.IsZero() {
			return domain.Value{}, nil
		}
		if v.ValueQuantity != nil {
			return domain.QuantityValue(*v.ValueQuantity), nil
		}
	}
	if f, ok := toFloat(value); ok {
		return domain.QuantityValue(domain.Quantity{Value: &f}), nil
	}
	return domain.Value{}, coercionErr(t, value)
}

func (t *QuantityType) Validate(domain.Value) error { return nil }

// --- Factory Functions ---

// ParseType returns the Type for a questionnaire item type.
// Group and display items carry no answers and are rejected.
func ParseType(itemType domain.ItemType) (Type, error) {
	switch itemType {
	case domain.TypeBoolean:
		return &BooleanType{}, nil
	case domain.TypeDecimal:
		return &DecimalType{}, nil
	case domain.TypeInteger:
		return &IntegerType{}, nil
	case domain.TypeDate, domain.TypeDateTime, domain.TypeTime:
		return &TemporalType{itemType: itemType}, nil
	case domain.TypeString, domain.TypeText, domain.TypeURL:
		return &StringType{itemType: itemType}, nil
	case domain.TypeCoding, domain.TypeChoice, domain.TypeOpenChoice:
		return &CodingType{itemType: itemType}, nil
	case domain.TypeAttachment:
		return &AttachmentType{}, nil
	case domain.TypeReference:
		return &ReferenceType{}, nil
	case domain.TypeQuantity:
		return &QuantityType{}, nil
	default:
		return nil, fmt.Errorf("unsupported answer type: %q", itemType)
	}
}

// ForItem returns the Type for item. Choice and open-choice items accept the value[x]
// kinds of their answerOptions, or every option kind when options are computed by an
// answerExpression.
func ForItem(item *domain.Item) (Type, error) {
	typ, err := ParseType(item.Type)
	if err != nil {
		return nil, err
	}
	ct, ok := typ.(*CodingType)
	if !ok || item.Type == domain.TypeCoding {
		return typ, nil
	}
	ct.kinds = make(map[string]bool)
	if _, computed := item.FindExtension(domain.ExtAnswerExpression); computed {
		for _, k := range choiceKinds {
			ct.kinds[k] = true
		}
	}
	for _, opt := range item.AnswerOption {
		ct.kinds[opt.Value.Field()] = true
	}
	return ct, nil
}

// IsEmpty reports whether v carries no answer content.
func IsEmpty(v domain.Value) bool {
	switch {
	case v.IsZero():
		return true
	case v.ValueCoding != nil:
		return v.ValueCoding.Code == "" && v.ValueCoding.Display == ""
	case v.ValueQuantity != nil:
		return v.ValueQuantity.Value == nil
	case v.ValueAttachment != nil:
		return *v.ValueAttachment == domain.Attachment{}
	case v.ValueReference != nil:
		return v.ValueReference.Reference == "" && v.ValueReference.Display == ""
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// decode maps loosely typed input (e.g., decoded JSON) onto a domain struct.
func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
