package form

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
	"github.com/aretw0/formtree/pkg/schema"
)

// Validators run inside each node's issues computation, which already exempts
// read-only and disabled nodes. Content checks are deferred until the form has
// attempted submission or the node was touched by a user command.

func (b *nodeBase) gated() bool {
	return b.form.submitted.Get() || b.self.Dirty()
}

func (q *Question) validate() domain.IssueList {
	if q.typ == nil {
		return domain.IssueList{q.issue(domain.IssueNotSupported, domain.NoAnswer,
			fmt.Sprintf("Item type %q is not supported.", q.item.Type))}
	}
	if !q.gated() {
		return nil
	}

	var out domain.IssueList
	populated := len(q.Values())
	if lo := q.MinOccurs(); populated < lo {
		msg := "An answer is required."
		if q.item.Repeats {
			msg = fmt.Sprintf("At least %d %s required.", lo, plural(lo, "answer is", "answers are"))
		}
		out = append(out, q.issue(domain.IssueRequired, domain.NoAnswer, msg))
	}
	if hi := q.MaxOccurs(); populated > hi {
		out = append(out, q.issue(domain.IssueStructure, domain.NoAnswer,
			fmt.Sprintf("At most %d %s allowed.", hi, plural(hi, "answer is", "answers are"))))
	}

	for i, a := range q.answers.items() {
		v := a.value.Get()
		if schema.IsEmpty(v) {
			continue
		}
		out = append(out, q.validateAnswer(i, v)...)
	}
	return out
}

func (q *Question) validateAnswer(i int, v domain.Value) domain.IssueList {
	if err := q.typ.Validate(v); err != nil {
		return domain.IssueList{q.issue(domain.IssueInvalid, i, fmt.Sprintf("Invalid %s: %v.", q.typ.Name(), err))}
	}

	var out domain.IssueList
	switch {
	case v.ValueString != "" || v.ValueURI != "":
		out = append(out, q.checkLength(i, v.ValueString+v.ValueURI)...)
	case v.ValueQuantity != nil:
		out = append(out, q.checkQuantity(i, *v.ValueQuantity)...)
	case v.ValueAttachment != nil:
		out = append(out, q.checkAttachment(i, *v.ValueAttachment)...)
	case v.ValueDecimal != nil, v.ValueInteger != nil,
		v.ValueDate != "", v.ValueDateTime != "", v.ValueTime != "":
		out = append(out, q.checkRange(i, v)...)
	}
	if v.ValueDecimal != nil {
		out = append(out, q.checkDecimalPlaces(i, *v.ValueDecimal)...)
	}

	if open, ok := q.typ.(*schema.CodingType); !ok || !open.Open() {
		if state := q.options.Get(); state.Status == OptionsReady && len(state.Options) > 0 && !optionAllows(state.Options, v) {
			out = append(out, q.issue(domain.IssueValue, i, "Value is not one of the permitted options."))
		}
	}
	return out
}

func (q *Question) checkLength(i int, s string) domain.IssueList {
	lo, hi, hasLo, hasHi := lengthBounds(q.item)
	n := utf8.RuneCountInString(s)
	var out domain.IssueList
	if hasLo && n < lo {
		out = append(out, q.issue(domain.IssueValue, i, fmt.Sprintf("Must be at least %d characters.", lo)))
	}
	if hasHi && n > hi {
		out = append(out, q.issue(domain.IssueTooLong, i, fmt.Sprintf("Must be at most %d characters.", hi)))
	}
	return out
}

func (q *Question) checkRange(i int, v domain.Value) domain.IssueList {
	item := valueItem(v)
	if item == nil {
		return nil
	}
	lo, hi := valueBounds(q.exprs, q.item)
	var out domain.IssueList
	if lo != nil {
		if cmp, ok, err := fhirpath.Compare(item, lo); err == nil && ok && cmp < 0 {
			out = append(out, q.issue(domain.IssueValue, i, "Value must be at least "+formatBound(lo)+"."))
		}
	}
	if hi != nil {
		if cmp, ok, err := fhirpath.Compare(item, hi); err == nil && ok && cmp > 0 {
			out = append(out, q.issue(domain.IssueValue, i, "Value must be at most "+formatBound(hi)+"."))
		}
	}
	return out
}

func (q *Question) checkQuantity(i int, answer domain.Quantity) domain.IssueList {
	if answer.Value == nil {
		return nil
	}
	lo, hi := quantityBounds(q.exprs, q.item)
	var out domain.IssueList
	if lo != nil && (!unitCompatible(answer, lo) || *answer.Value < lo.value) {
		out = append(out, q.issue(domain.IssueValue, i, "Quantity must be at least "+lo.String()+"."))
	}
	if hi != nil && (!unitCompatible(answer, hi) || *answer.Value > hi.value) {
		out = append(out, q.issue(domain.IssueValue, i, "Quantity must be at most "+hi.String()+"."))
	}
	out = append(out, q.checkDecimalPlaces(i, *answer.Value)...)
	return out
}

// unitCompatible reports whether a bound applies to the answer. A bound declared
// against a unit only constrains answers with the exact same system and code.
func unitCompatible(answer domain.Quantity, b *quantityBound) bool {
	return b.unit == nil || answer.SameUnit(*b.unit)
}

func (b *quantityBound) String() string {
	s := strconv.FormatFloat(b.value, 'f', -1, 64)
	if b.unit == nil {
		return s
	}
	unit := b.unit.Unit
	if unit == "" {
		unit = b.unit.Code
	}
	return s + " " + unit
}

func (q *Question) checkDecimalPlaces(i int, f float64) domain.IssueList {
	limit, ok := extensionInt(q.item, domain.ExtMaxDecimalPlaces)
	if !ok {
		return nil
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	places := 0
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		places = len(s) - dot - 1
	}
	if places > limit {
		return domain.IssueList{q.issue(domain.IssueValue, i,
			fmt.Sprintf("At most %d decimal %s allowed.", limit, plural(limit, "place is", "places are")))}
	}
	return nil
}

func (q *Question) checkAttachment(i int, a domain.Attachment) domain.IssueList {
	var out domain.IssueList
	var allowed []string
	for _, ext := range q.item.Extensions(domain.ExtMimeType) {
		if ext.ValueCode != "" {
			allowed = append(allowed, ext.ValueCode)
		}
	}
	if len(allowed) > 0 && !slices.Contains(allowed, a.ContentType) {
		out = append(out, q.issue(domain.IssueNotSupported, i,
			fmt.Sprintf("Content type %q is not allowed; expected one of %s.", a.ContentType, strings.Join(allowed, ", "))))
	}
	if limit, ok := extensionInt(q.item, domain.ExtMaxSize); ok {
		if size := attachmentSize(a); size > int64(limit) {
			out = append(out, q.issue(domain.IssueTooLong, i,
				fmt.Sprintf("Attachment is %d bytes; the limit is %d.", size, limit)))
		}
	}
	return out
}

// attachmentSize prefers the declared size and falls back to the decoded inline data.
func attachmentSize(a domain.Attachment) int64 {
	if a.Size != nil {
		return *a.Size
	}
	if a.Data == "" {
		return 0
	}
	if raw, err := base64.StdEncoding.DecodeString(a.Data); err == nil {
		return int64(len(raw))
	}
	return int64(base64.StdEncoding.DecodedLen(len(a.Data)))
}

func (g *Group) validate() domain.IssueList {
	out := append(domain.IssueList(nil), g.structural...)
	if g.instance || !g.item.Required || !g.gated() {
		return out
	}
	if len(buildFragments(g.children.items())) == 0 {
		out = append(out, g.issue(domain.IssueRequired, domain.NoAnswer, "At least one item in this group must be answered."))
	}
	return out
}

func (w *RepeatingGroup) validate() domain.IssueList {
	out := append(domain.IssueList(nil), w.structural...)
	if !w.gated() {
		return out
	}
	populated := 0
	for _, inst := range w.instances.items() {
		if len(inst.fragments()) > 0 {
			populated++
		}
	}
	if lo := w.MinOccurs(); populated < lo {
		out = append(out, w.issue(domain.IssueRequired, domain.NoAnswer,
			fmt.Sprintf("At least %d %s required.", lo, plural(lo, "occurrence is", "occurrences are"))))
	}
	if hi := w.MaxOccurs(); populated > hi {
		out = append(out, w.issue(domain.IssueStructure, domain.NoAnswer,
			fmt.Sprintf("At most %d %s allowed.", hi, plural(hi, "occurrence is", "occurrences are"))))
	}
	return out
}

// placementIssues checks the child layout required by table and grid controls.
func placementIssues(b *nodeBase) domain.IssueList {
	var out domain.IssueList
	switch control := b.item.ItemControl(); control {
	case domain.ControlGTable, domain.ControlTable:
		for _, child := range b.item.Item {
			if !child.Type.IsQuestion() || child.Repeats {
				out = append(out, b.issue(domain.IssueStructure, domain.NoAnswer,
					fmt.Sprintf("%s %q: child %q must be a non-repeating question.", control, b.item.LinkID, child.LinkID)))
			}
		}
	case domain.ControlGrid:
		for _, child := range b.item.Item {
			if child.Type != domain.TypeGroup {
				out = append(out, b.issue(domain.IssueStructure, domain.NoAnswer,
					fmt.Sprintf("grid %q: child %q must be a group.", b.item.LinkID, child.LinkID)))
			}
		}
	}
	for i := range out {
		b.form.reportStructure(out[i])
	}
	return out
}

func formatBound(v any) string {
	if s, ok := fhirpath.ToString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
