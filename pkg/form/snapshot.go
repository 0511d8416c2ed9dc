package form

import (
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
	"github.com/aretw0/formtree/pkg/schema"
)

// Snapshots are the plain map form of the tree that expressions navigate.
// They follow the QuestionnaireResponse JSON shape so that paths such as
// item.where(linkId = 'x').answer.value work unchanged.

func questionSnapshot(q *Question) map[string]any {
	m := map[string]any{"linkId": q.LinkID()}
	if q.item.Text != "" {
		m["text"] = q.item.Text
	}
	var answers []any
	for _, a := range q.answers.items() {
		entry := map[string]any{}
		v := a.value.Get()
		if !schema.IsEmpty(v) {
			entry[v.Field()] = rawValue(v)
		}
		if children := snapshotAll(a.children.items()); len(children) > 0 {
			entry["item"] = children
		}
		if len(entry) > 0 {
			answers = append(answers, entry)
		}
	}
	if len(answers) > 0 {
		m["answer"] = answers
	}
	return m
}

func groupSnapshot(g *Group) map[string]any {
	m := map[string]any{"linkId": g.LinkID()}
	if g.item.Text != "" {
		m["text"] = g.item.Text
	}
	if children := snapshotAll(g.children.items()); len(children) > 0 {
		m["item"] = children
	}
	return m
}

func snapshotAll(nodes []Node) []any {
	var out []any
	for _, n := range nodes {
		out = append(out, n.snapshot()...)
	}
	return out
}

// rawValue returns the JSON-shaped form of an answer value.
func rawValue(v domain.Value) any {
	switch {
	case v.ValueCoding != nil:
		return compact(map[string]any{
			"system":  v.ValueCoding.System,
			"version": v.ValueCoding.Version,
			"code":    v.ValueCoding.Code,
			"display": v.ValueCoding.Display,
		})
	case v.ValueQuantity != nil:
		m := compact(map[string]any{
			"unit":   v.ValueQuantity.Unit,
			"system": v.ValueQuantity.System,
			"code":   v.ValueQuantity.Code,
		})
		if v.ValueQuantity.Value != nil {
			m["value"] = *v.ValueQuantity.Value
		}
		return m
	case v.ValueAttachment != nil:
		a := v.ValueAttachment
		m := compact(map[string]any{
			"contentType": a.ContentType,
			"language":    a.Language,
			"data":        a.Data,
			"url":         a.URL,
			"title":       a.Title,
		})
		if a.Size != nil {
			m["size"] = *a.Size
		}
		return m
	case v.ValueReference != nil:
		return compact(map[string]any{
			"reference": v.ValueReference.Reference,
			"display":   v.ValueReference.Display,
		})
	}
	return v.Raw()
}

func compact(m map[string]any) map[string]any {
	for k, v := range m {
		if s, ok := v.(string); ok && s == "" {
			delete(m, k)
		}
	}
	return m
}

// valueItem converts a value into a typed FHIRPath item for comparisons.
// It returns nil for empty values.
func valueItem(v domain.Value) any {
	switch v.Field() {
	case "":
		return nil
	case "valueDate":
		if d, err := fhirpath.ParseDate(v.ValueDate); err == nil {
			return d
		}
		return nil
	case "valueDateTime":
		if dt, err := fhirpath.ParseDateTime(v.ValueDateTime); err == nil {
			return dt
		}
		return nil
	case "valueTime":
		if t, err := fhirpath.ParseTime(v.ValueTime); err == nil {
			return t
		}
		return nil
	case "valueQuantity":
		q := v.ValueQuantity
		if q.Value == nil {
			return nil
		}
		unit := q.Code
		if unit == "" {
			unit = q.Unit
		}
		return fhirpath.Quantity{Value: *q.Value, Unit: unit, System: q.System}
	}
	return rawValue(v)
}

// questionnaireSnapshot exposes the template to %questionnaire.
func questionnaireSnapshot(q *domain.Questionnaire) map[string]any {
	m := compact(map[string]any{
		"resourceType": "Questionnaire",
		"id":           q.ID,
		"url":          q.URL,
		"version":      q.Version,
		"name":         q.Name,
		"title":        q.Title,
		"status":       q.Status,
	})
	if len(q.Item) > 0 {
		m["item"] = itemSnapshots(q.Item)
	}
	return m
}

func itemSnapshot(it *domain.Item) map[string]any {
	m := compact(map[string]any{
		"linkId":     it.LinkID,
		"definition": it.Definition,
		"prefix":     it.Prefix,
		"text":       it.Text,
		"type":       string(it.Type),
	})
	m["required"] = it.Required
	m["repeats"] = it.Repeats
	m["readOnly"] = it.ReadOnly
	if it.MaxLength != nil {
		m["maxLength"] = int64(*it.MaxLength)
	}
	if len(it.AnswerOption) > 0 {
		opts := make([]any, 0, len(it.AnswerOption))
		for _, o := range it.AnswerOption {
			if o.IsZero() {
				continue
			}
			opts = append(opts, map[string]any{o.Field(): rawValue(o.Value)})
		}
		if len(opts) > 0 {
			m["answerOption"] = opts
		}
	}
	if len(it.Item) > 0 {
		m["item"] = itemSnapshots(it.Item)
	}
	return m
}

func itemSnapshots(items []domain.Item) []any {
	out := make([]any, 0, len(items))
	for i := range items {
		out = append(out, itemSnapshot(&items[i]))
	}
	return out
}
