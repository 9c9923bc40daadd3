package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/mentorboxai/api/internal/model"
)

const codeFence = "```"

// ParseJSON extracts a JSON object from raw model output. Fenced output is
// narrowed to the span between the first '{' and the last '}'. Anything that
// does not decode to an object yields an empty, non-nil document.
func ParseJSON(text string) model.Document {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Document{}
	}

	if strings.HasPrefix(text, codeFence) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start != -1 && end > start {
			text = text[start : end+1]
		}
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil || doc == nil {
		return model.Document{}
	}
	return doc
}

// ExtractCode strips a surrounding markdown fence (```python ... ```) from
// generated code. Unfenced text is returned trimmed.
func ExtractCode(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, codeFence) {
		return text
	}

	body := text[len(codeFence):]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if end := strings.LastIndex(body, codeFence); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// boolField reads a boolean field, returning def when it is absent or not a bool.
func boolField(doc model.Document, key string, def bool) bool {
	if v, ok := doc[key].(bool); ok {
		return v
	}
	return def
}

// docField reads a nested object field.
func docField(doc model.Document, key string) model.Document {
	if v, ok := doc[key].(map[string]any); ok {
		return model.Document(v)
	}
	return nil
}

// stringField reads a string field.
func stringField(doc model.Document, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

// marshalIndent renders a document for embedding in a prompt.
func marshalIndent(doc model.Document) string {
	if doc == nil {
		doc = model.Document{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
