// Package schema provides the answer type system for questionnaire items.
//
// Every answerable item type (boolean, decimal, integer, date, dateTime, time,
// string, text, url, coding/choice/open-choice, attachment, reference,
// quantity) maps to a Type that knows its value[x] field, how to coerce loosely
// typed input into a domain.Value, and how to check the lexical form of a value.
//
// Basic usage:
//
//	typ, err := schema.ParseType(domain.TypeInteger)
//	if err != nil {
//	    // group or display item
//	}
//	v, err := typ.Coerce("42")  // domain.Integer(42)
//	if errors.Is(err, schema.ErrCoercion) {
//	    // reject input
//	}
//
// Complex values supplied as maps (for example, decoded JSON) are mapped onto
// domain.Coding, domain.Quantity, domain.Attachment and domain.Reference.
package schema
