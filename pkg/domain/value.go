package domain

// Coding is a reference to a code defined by a terminology system.
type Coding struct {
	System  string `json:"system,omitempty" mapstructure:"system"`
	Version string `json:"version,omitempty" mapstructure:"version"`
	Code    string `json:"code,omitempty" mapstructure:"code"`
	Display string `json:"display,omitempty" mapstructure:"display"`
}

// Matches reports whether two codings denote the same concept.
// An empty system on either side matches on code alone.
func (c Coding) Matches(other Coding) bool {
	if c.Code != other.Code {
		return false
	}
	return c.System == "" || other.System == "" || c.System == other.System
}

// CodeableConcept is a set of codings plus free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Quantity is a measured amount with a unit.
type Quantity struct {
	Value  *float64 `json:"value,omitempty" mapstructure:"value"`
	Unit   string   `json:"unit,omitempty" mapstructure:"unit"`
	System string   `json:"system,omitempty" mapstructure:"system"`
	Code   string   `json:"code,omitempty" mapstructure:"code"`
}

// SameUnit reports whether q and other share the exact system and code pair.
func (q Quantity) SameUnit(other Quantity) bool {
	return q.System == other.System && q.Code == other.Code
}

// Attachment is content referenced or embedded in an answer.
type Attachment struct {
	ContentType string `json:"contentType,omitempty" mapstructure:"contentType"`
	Language    string `json:"language,omitempty" mapstructure:"language"`
	Data        string `json:"data,omitempty" mapstructure:"data"`
	URL         string `json:"url,omitempty" mapstructure:"url"`
	Size        *int64 `json:"size,omitempty" mapstructure:"size"`
	Title       string `json:"title,omitempty" mapstructure:"title"`
}

// Reference points at another resource.
type Reference struct {
	Reference string `json:"reference,omitempty" mapstructure:"reference"`
	Display   string `json:"display,omitempty" mapstructure:"display"`
}

// Value is the value[x] union. At most one field is populated.
type Value struct {
	ValueBoolean    *bool       `json:"valueBoolean,omitempty"`
	ValueDecimal    *float64    `json:"valueDecimal,omitempty"`
	ValueInteger    *int64      `json:"valueInteger,omitempty"`
	ValueDate       string      `json:"valueDate,omitempty"`
	ValueDateTime   string      `json:"valueDateTime,omitempty"`
	ValueTime       string      `json:"valueTime,omitempty"`
	ValueString     string      `json:"valueString,omitempty"`
	ValueURI        string      `json:"valueUri,omitempty"`
	ValueAttachment *Attachment `json:"valueAttachment,omitempty"`
	ValueCoding     *Coding     `json:"valueCoding,omitempty"`
	ValueQuantity   *Quantity   `json:"valueQuantity,omitempty"`
	ValueReference  *Reference  `json:"valueReference,omitempty"`
}

// IsZero reports whether no value field is populated.
func (v Value) IsZero() bool {
	return v.Field() == ""
}

// Field returns the JSON name of the populated value field, or "".
func (v Value) Field() string {
	switch {
	case v.ValueBoolean != nil:
		return "valueBoolean"
	case v.ValueDecimal != nil:
		return "valueDecimal"
	case v.ValueInteger != nil:
		return "valueInteger"
	case v.ValueDate != "":
		return "valueDate"
	case v.ValueDateTime != "":
		return "valueDateTime"
	case v.ValueTime != "":
		return "valueTime"
	case v.ValueString != "":
		return "valueString"
	case v.ValueURI != "":
		return "valueUri"
	case v.ValueAttachment != nil:
		return "valueAttachment"
	case v.ValueCoding != nil:
		return "valueCoding"
	case v.ValueQuantity != nil:
		return "valueQuantity"
	case v.ValueReference != nil:
		return "valueReference"
	}
	return ""
}

// Raw returns the populated value as a plain Go value (bool, float64, int64, string
// or one of the complex structs), or nil.
func (v Value) Raw() any {
	switch v.Field() {
	case "valueBoolean":
		return *v.ValueBoolean
	case "valueDecimal":
		return *v.ValueDecimal
	case "valueInteger":
		return *v.ValueInteger
	case "valueDate":
		return v.ValueDate
	case "valueDateTime":
		return v.ValueDateTime
	case "valueTime":
		return v.ValueTime
	case "valueString":
		return v.ValueString
	case "valueUri":
		return v.ValueURI
	case "valueAttachment":
		return *v.ValueAttachment
	case "valueCoding":
		return *v.ValueCoding
	case "valueQuantity":
		return *v.ValueQuantity
	case "valueReference":
		return *v.ValueReference
	}
	return nil
}

// Bool returns a Value holding b.
func Bool(b bool) Value { return Value{ValueBoolean: &b} }

// Decimal returns a Value holding f.
func Decimal(f float64) Value { return Value{ValueDecimal: &f} }

// Integer returns a Value holding i.
func Integer(i int64) Value { return Value{ValueInteger: &i} }

// String returns a Value holding s.
func String(s string) Value { return Value{ValueString: s} }

// CodingValue returns a Value holding c.
func CodingValue(c Coding) Value { return Value{ValueCoding: &c} }

// QuantityValue returns a Value holding q.
func QuantityValue(q Quantity) Value { return Value{ValueQuantity: &q} }

// AttachmentValue returns a Value holding a.
func AttachmentValue(a Attachment) Value { return Value{ValueAttachment: &a} }
