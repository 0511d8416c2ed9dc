package fhirpath

import (
	"math"
	"reflect"
	"sort"
	"strings"
)

// Quantity is a FHIRPath quantity: a decimal value and a unit code.
type Quantity struct {
	Value  float64
	Unit   string
	System string
}

// Collection is the FHIRPath evaluation value: an ordered list of items.
//
// Items are bool, int64, float64, string, Date, DateTime, Time, Quantity, or
// map[string]any for complex elements (possibly holding []any, nested maps and
// any of the primitive item types).
type Collection []any

// Empty reports whether the collection has no items.
func (c Collection) Empty() bool { return len(c) == 0 }

// Bool returns the singleton boolean value of c.
// ok is false when c is empty. A single non-boolean item evaluates to true.
func (c Collection) Bool() (value, ok bool, err error) {
	switch len(c) {
	case 0:
		return false, false, nil
	case 1:
		if b, isBool := c[0].(bool); isBool {
			return b, true, nil
		}
		return true, true, nil
	default:
		return false, false, typeErr("expected a single boolean, got %d items", len(c))
	}
}

// Single returns the only item of c, nil when c is empty, or a type error.
func (c Collection) Single() (any, error) {
	switch len(c) {
	case 0:
		return nil, nil
	case 1:
		return c[0], nil
	default:
		return nil, typeErr("expected a single item, got %d", len(c))
	}
}

// FirstNumber returns the first item as a float64.
func (c Collection) FirstNumber() (float64, bool) {
	if len(c) == 0 {
		return 0, false
	}
	return toFloat(c[0])
}

// Normalize converts an arbitrary Go value into collection items.
// Slices are flattened, ints widened to int64, float32 to float64, and
// comparable structs are left for the caller to map.
func Normalize(v any) Collection {
	switch x := v.(type) {
	case nil:
		return nil
	case Collection:
		return x
	case []any:
		var out Collection
		for _, item := range x {
			out = append(out, Normalize(item)...)
		}
		return out
	case []map[string]any:
		out := make(Collection, 0, len(x))
		for _, item := range x {
			out = append(out, item)
		}
		return out
	case int:
		return Collection{int64(x)}
	case int32:
		return Collection{int64(x)}
	case float32:
		return Collection{float64(x)}
	}
	return Collection{v}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case Quantity:
		return x.Value, true
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func isTemporal(v any) bool {
	switch v.(type) {
	case Date, DateTime, Time:
		return true
	}
	return false
}

// equalItems implements FHIRPath '=' on two items. ok=false means unknown (empty).
func equalItems(a, b any) (bool, bool) {
	if isNumber(a) && isNumber(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb, true
	}
	if isTemporal(a) && isTemporal(b) {
		cmp, ok := compareTemporal(a, b)
		if !ok {
			return false, false
		}
		return cmp == 0, true
	}
	switch x := a.(type) {
	case Quantity:
		y, ok := b.(Quantity)
		if !ok {
			return false, true
		}
		return x.Unit == y.Unit && x.Value == y.Value, true
	case map[string]any:
		y, ok := b.(map[string]any)
		return ok && reflect.DeepEqual(x, y), true
	}
	return a == b, true
}

// equalCollections implements '='. ok=false means the result is empty.
func equalCollections(a, b Collection) (bool, bool) {
	if len(a) == 0 || len(b) == 0 {
		return false, false
	}
	if len(a) != len(b) {
		return false, true
	}
	for i := range a {
		eq, ok := equalItems(a[i], b[i])
		if !ok {
			return false, false
		}
		if !eq {
			return false, true
		}
	}
	return true, true
}

// equivalentItems implements '~' on two items.
func equivalentItems(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return math.Abs(fa-fb) < 1e-9
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && normalizeSpace(sa) == normalizeSpace(sb)
	}
	if isTemporal(a) && isTemporal(b) {
		cmp, ok := compareTemporal(a, b)
		return ok && cmp == 0
	}
	eq, ok := equalItems(a, b)
	return ok && eq
}

func equivalentCollections(a, b Collection) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for j, y := range b {
			if !used[j] && equivalentItems(x, y) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func normalizeSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Compare orders two items with FHIRPath comparison semantics.
// ok is false when the result is unknown (mismatched units or precision).
func Compare(a, b any) (cmp int, ok bool, err error) {
	return compareItems(a, b)
}

// compareItems orders two singleton items. ok=false means the result is empty.
func compareItems(a, b any) (int, bool, error) {
	if isNumber(a) && isNumber(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmpFloat(fa, fb), true, nil
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			break
		}
		return strings.Compare(x, y), true, nil
	case Quantity:
		y, ok := b.(Quantity)
		if !ok {
			break
		}
		if x.Unit != y.Unit {
			return 0, false, nil
		}
		return cmpFloat(x.Value, y.Value), true, nil
	}
	if isTemporal(a) && isTemporal(b) {
		cmp, ok := compareTemporal(a, b)
		return cmp, ok, nil
	}
	return 0, false, typeErr("cannot compare %s with %s", typeName(a), typeName(b))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func contains(c Collection, item any) bool {
	for _, x := range c {
		if eq, ok := equalItems(x, item); ok && eq {
			return true
		}
	}
	return false
}

func distinct(c Collection) Collection {
	out := make(Collection, 0, len(c))
	for _, item := range c {
		if !contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "Boolean"
	case int64:
		return "Integer"
	case float64:
		return "Decimal"
	case string:
		return "String"
	case Date:
		return "Date"
	case DateTime:
		return "DateTime"
	case Time:
		return "Time"
	case Quantity:
		return "Quantity"
	case map[string]any:
		return "Element"
	case nil:
		return "empty"
	}
	return reflect.TypeOf(v).String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
