package schema

import (
	"encoding/json"
	"maps"
	"time"
)

// TextKey is the data key a Record's text is stored under when flattened.
const TextKey = "text"

type Text = string

// Document is the vector-store native representation of a unit of content.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// DocumentConverter is implemented by values that can be turned into a Document.
type DocumentConverter interface {
	ToDocument() Document
}

// Record is a structured unit of content flowing between components.
type Record struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data"`
}

func NewRecord(text string, data map[string]any) *Record {
	if data == nil {
		data = make(map[string]any)
	}
	return &Record{Text: text, Data: data}
}

// Set writes a data key, allocating the map on first use.
func (r *Record) Set(key string, value any) {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
}

// ToDocument returns the record's text as page content and a copy of its data
// without the text key as metadata.
func (r *Record) ToDocument() Document {
	meta := make(map[string]any, len(r.Data))
	maps.Copy(meta, r.Data)
	content := r.Text
	if v, ok := meta[TextKey]; ok {
		if s, ok := v.(string); ok && content == "" {
			content = s
		}
		delete(meta, TextKey)
	}
	return Document{PageContent: content, Metadata: meta}
}

// MarshalJSON flattens the record the way the UI expects: data keys plus "text".
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Data)+1)
	maps.Copy(flat, r.Data)
	flat[TextKey] = r.Text
	return json.Marshal(flat)
}

// UnmarshalJSON accepts both the flattened form and {"text": ..., "data": {...}}.
func (r *Record) UnmarshalJSON(b []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	r.Data = make(map[string]any)
	if nested, ok := flat["data"].(map[string]any); ok {
		maps.Copy(r.Data, nested)
		delete(flat, "data")
	}
	if text, ok := flat[TextKey].(string); ok {
		r.Text = text
	}
	delete(flat, TextKey)
	maps.Copy(r.Data, flat)
	return nil
}

// Message is a chat message persisted for a session.
type Message struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Sender     string         `json:"sender"`
	SenderName string         `json:"sender_name"`
	Text       string         `json:"text"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Record converts the message into a record carrying its sender metadata.
func (m Message) Record() *Record {
	rec := NewRecord(m.Text, nil)
	maps.Copy(rec.Data, m.Data)
	rec.Set("sender", m.Sender)
	rec.Set("sender_name", m.SenderName)
	rec.Set("session_id", m.SessionID)
	return rec
}
