package loam

// QuestionnaireMetadata is the document shape Loam decodes from a questionnaire file:
// the YAML frontmatter of a Markdown document, or the body of a JSON/YAML document.
// Items and extensions stay loosely typed and are decoded by the domain JSON model.
type QuestionnaireMetadata struct {
	ResourceType string `json:"resourceType" mapstructure:"resourceType"`
	ID           string `json:"id" mapstructure:"id"`
	URL          string `json:"url" mapstructure:"url"`
	Version      string `json:"version" mapstructure:"version"`
	Name         string `json:"name" mapstructure:"name"`
	Title        string `json:"title" mapstructure:"title"`
	Status       string `json:"status" mapstructure:"status"`
	Extension    []any  `json:"extension" mapstructure:"extension"`
	Item         []any  `json:"item" mapstructure:"item"`
}

func (m QuestionnaireMetadata) document(id string) map[string]any {
	doc := map[string]any{
		"resourceType": "Questionnaire",
		"id":           id,
	}
	set := func(key, value string) {
		if value != "" {
			doc[key] = value
		}
	}
	set("resourceType", m.ResourceType)
	set("url", m.URL)
	set("version", m.Version)
	set("name", m.Name)
	set("title", m.Title)
	set("status", m.Status)
	if len(m.Extension) > 0 {
		doc["extension"] = normalize(m.Extension)
	}
	if len(m.Item) > 0 {
		doc["item"] = normalize(m.Item)
	}
	return doc
}
