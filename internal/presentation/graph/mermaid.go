package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/formtree/pkg/domain"
)

// GraphOverlay contains runtime state to visualize on the graph, by linkId.
type GraphOverlay struct {
	Answered []string
	Disabled []string
	Invalid  []string
}

// GenerateMermaid produces a Mermaid flowchart of the questionnaire's item tree.
// Shapes:
// - Group: [[Subroutine]]
// - Display: >Flag]
// - Question: [/Parallelogram/]
// Solid edges follow containment; dotted edges run from an enableWhen source
// question to the item it controls.
func GenerateMermaid(q *domain.Questionnaire, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	root := sanitizeMermaidID(q.ID)
	if root == "" {
		root = "questionnaire"
	}
	title := q.Title
	if title == "" {
		title = q.ID
	}
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", root, quote(title))

	var conditions []string
	var walk func(parent string, items []domain.Item)
	walk = func(parent string, items []domain.Item) {
		for i := range items {
			it := &items[i]
			id := sanitizeMermaidID(it.LinkID)
			fmt.Fprintf(&sb, "    %s\n", shape(id, it))
			fmt.Fprintf(&sb, "    %s --> %s\n", parent, id)
			for _, ew := range it.EnableWhen {
				conditions = append(conditions, fmt.Sprintf("    %s -. \"%s\" .-> %s\n",
					sanitizeMermaidID(ew.Question), quote(condition(ew)), id))
			}
			walk(id, it.Item)
		}
	}
	walk(root, q.Item)
	for _, c := range conditions {
		sb.WriteString(c)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef answered fill:#dcfce7,stroke:#15803d,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef disabled fill:#f3f4f6,stroke:#9ca3af,stroke-dasharray:4,color:#6b7280;\n")
		sb.WriteString("    classDef invalid fill:#fee2e2,stroke:#b91c1c,stroke-width:3px,color:#000;\n")
		writeClass(&sb, "answered", overlay.Answered)
		writeClass(&sb, "disabled", overlay.Disabled)
		writeClass(&sb, "invalid", overlay.Invalid)
	}

	return sb.String()
}

func shape(id string, it *domain.Item) string {
	label := it.LinkID
	if it.Text != "" {
		label += ": " + truncate(it.Text, 40)
	}
	switch it.Type {
	case domain.TypeGroup:
		if it.Repeats {
			label += " ↻"
		}
		return fmt.Sprintf("%s[[\"%s\"]]", id, quote(label))
	case domain.TypeDisplay:
		return fmt.Sprintf("%s>\"%s\"]", id, quote(label))
	}
	label += " <br/> " + string(it.Type)
	if it.Required {
		label += " *"
	}
	if it.Repeats {
		label += " ↻"
	}
	return fmt.Sprintf("%s[/\"%s\"/]", id, quote(label))
}

func condition(ew domain.EnableWhen) string {
	if ew.Operator == domain.OpExists {
		if ew.AnswerBoolean != nil && !*ew.AnswerBoolean {
			return "not exists"
		}
		return "exists"
	}
	return ew.Operator + " " + operand(ew.Answer())
}

func operand(v domain.Value) string {
	switch raw := v.Raw().(type) {
	case nil:
		return "?"
	case domain.Coding:
		if raw.Display != "" {
			return raw.Display
		}
		return raw.Code
	case domain.Quantity:
		if raw.Value == nil {
			return raw.Unit
		}
		return fmt.Sprintf("%v %s", *raw.Value, raw.Unit)
	case domain.Reference:
		return raw.Reference
	default:
		return fmt.Sprint(raw)
	}
}

func writeClass(sb *strings.Builder, class string, linkIDs []string) {
	seen := make(map[string]bool)
	for _, linkID := range linkIDs {
		id := sanitizeMermaidID(linkID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(sb, "    class %s %s;\n", id, class)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
