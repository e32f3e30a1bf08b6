package schema

import "maps"

// FromValue turns a decoded JSON object into the content type it describes:
// an object with "page_content" becomes a Document, any other object a Record.
// Non-object values are returned unchanged.
func FromValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if content, ok := m["page_content"].(string); ok {
		doc := Document{PageContent: content, Metadata: map[string]any{}}
		if meta, ok := m["metadata"].(map[string]any); ok {
			maps.Copy(doc.Metadata, meta)
		}
		return doc
	}

	rec := NewRecord("", nil)
	for k, val := range m {
		switch k {
		case TextKey:
			if s, ok := val.(string); ok {
				rec.Text = s
			}
		case "data":
			if nested, ok := val.(map[string]any); ok {
				maps.Copy(rec.Data, nested)
				continue
			}
			rec.Data[k] = val
		default:
			rec.Data[k] = val
		}
	}
	return rec
}

// FromValues applies FromValue to each element.
func FromValues(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = FromValue(v)
	}
	return out
}
