package form

import (
	"math"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// Unbounded is the MaxOccurs of a repeating item without an upper limit.
const Unbounded = math.MaxInt

// minOccurs resolves the lower occurrence bound: expression, then extension, then
// required, then zero. A failing expression falls back to the static bound.
func minOccurs(exprs *Registry, item *domain.Item) int {
	if n, ok := slotInt(exprs, SlotMinOccurs); ok {
		return max(n, 0)
	}
	if n, ok := extensionInt(item, domain.ExtMinOccurs); ok {
		return max(n, 0)
	}
	if item.Required {
		return 1
	}
	return 0
}

// maxOccurs resolves the upper occurrence bound of a repeating item.
func maxOccurs(exprs *Registry, item *domain.Item) int {
	if !item.Repeats {
		return 1
	}
	if n, ok := slotInt(exprs, SlotMaxOccurs); ok {
		return max(n, 0)
	}
	if n, ok := extensionInt(item, domain.ExtMaxOccurs); ok {
		return max(n, 0)
	}
	return Unbounded
}

func slotInt(exprs *Registry, kind SlotKind) (int, bool) {
	v, ok := slotFirst(exprs, kind)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

// slotFirst returns the first element of a successful, non-empty slot result.
func slotFirst(exprs *Registry, kind SlotKind) (any, bool) {
	slot := exprs.Slot(kind)
	if slot == nil {
		return nil, false
	}
	out, err := slot.Value()
	if err != nil || len(out) == 0 {
		return nil, false
	}
	return out[0], true
}

func extensionInt(item *domain.Item, url string) (int, bool) {
	ext, ok := item.FindExtension(url)
	if !ok {
		return 0, false
	}
	switch {
	case ext.ValueInteger != nil:
		return int(*ext.ValueInteger), true
	case ext.ValueDecimal != nil && *ext.ValueDecimal == math.Trunc(*ext.ValueDecimal):
		return int(*ext.ValueDecimal), true
	}
	return 0, false
}

// extensionItem returns the static value of a bound extension as a FHIRPath item.
func extensionItem(item *domain.Item, url string) any {
	ext, ok := item.FindExtension(url)
	if !ok {
		return nil
	}
	return valueItem(ext.Value)
}

// valueBounds resolves the inclusive range for numeric and temporal answers.
// A contradictory static pair is dropped; expression bounds then override each side.
func valueBounds(exprs *Registry, item *domain.Item) (lo, hi any) {
	lo = extensionItem(item, domain.ExtMinValue)
	hi = extensionItem(item, domain.ExtMaxValue)
	if contradictory(lo, hi) {
		lo, hi = nil, nil
	}
	if v, ok := slotFirst(exprs, SlotMinValue); ok {
		lo = v
	}
	if v, ok := slotFirst(exprs, SlotMaxValue); ok {
		hi = v
	}
	return lo, hi
}

func contradictory(lo, hi any) bool {
	if lo == nil || hi == nil {
		return false
	}
	cmp, ok, err := fhirpath.Compare(lo, hi)
	return err == nil && ok && cmp > 0
}

// quantityBound is a bound on a quantity answer. A nil unit constrains the number only.
type quantityBound struct {
	value float64
	unit  *domain.Quantity
}

// quantityBounds resolves the range for quantity answers. Expression bounds win, then
// the quantity-specific extensions, then the generic minValue/maxValue.
func quantityBounds(exprs *Registry, item *domain.Item) (lo, hi *quantityBound) {
	lo = staticQuantity(item, domain.ExtMinQuantity)
	hi = staticQuantity(item, domain.ExtMaxQuantity)
	if lo != nil && hi != nil && sameBoundUnit(lo, hi) && lo.value > hi.value {
		lo, hi = nil, nil
	}
	genericLo := extensionItem(item, domain.ExtMinValue)
	genericHi := extensionItem(item, domain.ExtMaxValue)
	if contradictory(genericLo, genericHi) {
		genericLo, genericHi = nil, nil
	}
	if lo == nil {
		lo = itemQuantity(genericLo)
	}
	if hi == nil {
		hi = itemQuantity(genericHi)
	}
	if v, ok := slotFirst(exprs, SlotMinValue); ok {
		if b := itemQuantity(v); b != nil {
			lo = b
		}
	}
	if v, ok := slotFirst(exprs, SlotMaxValue); ok {
		if b := itemQuantity(v); b != nil {
			hi = b
		}
	}
	return lo, hi
}

func staticQuantity(item *domain.Item, url string) *quantityBound {
	ext, ok := item.FindExtension(url)
	if !ok || ext.ValueQuantity == nil || ext.ValueQuantity.Value == nil {
		return nil
	}
	b := &quantityBound{value: *ext.ValueQuantity.Value}
	if ext.ValueQuantity.Code != "" || ext.ValueQuantity.System != "" {
		unit := *ext.ValueQuantity
		b.unit = &unit
	}
	return b
}

func itemQuantity(v any) *quantityBound {
	switch x := v.(type) {
	case int64:
		return &quantityBound{value: float64(x)}
	case float64:
		return &quantityBound{value: x}
	case fhirpath.Quantity:
		b := &quantityBound{value: x.Value}
		if x.Unit != "" || x.System != "" {
			b.unit = &domain.Quantity{Code: x.Unit, System: x.System, Unit: x.Unit}
		}
		return b
	}
	return nil
}

func sameBoundUnit(a, b *quantityBound) bool {
	if a.unit == nil || b.unit == nil {
		return a.unit == nil && b.unit == nil
	}
	return a.unit.SameUnit(*b.unit)
}

// lengthBounds resolves the string length range; a contradictory pair is dropped.
func lengthBounds(item *domain.Item) (lo, hi int, hasLo, hasHi bool) {
	lo, hasLo = extensionInt(item, domain.ExtMinLength)
	if item.MaxLength != nil {
		hi, hasHi = *item.MaxLength, true
	}
	if hasLo && hasHi && lo > hi {
		return 0, 0, false, false
	}
	return lo, hi, hasLo, hasHi
}
