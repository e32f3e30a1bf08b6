// Package component defines the contract between flowkit components and the
// host flow builder: a declarative schema the UI renders, and a build
// operation that turns configured parameters into an output.
package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"flowkit/internal/schema"
	"flowkit/internal/vectorstore"
)

var (
	ErrNotFound      = errors.New("component not found")
	ErrInvalidParams = errors.New("invalid component parameters")
	ErrDuplicate     = errors.New("component already registered")
)

// InputType tags the kinds of upstream outputs a field accepts.
type InputType string

const (
	InputText       InputType = "Text"
	InputRecord     InputType = "Record"
	InputDocument   InputType = "Document"
	InputEmbeddings InputType = "Embeddings"
)

// Field describes one configurable parameter for the UI renderer.
type Field struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Info        string      `json:"info,omitempty"`
	InputTypes  []InputType `json:"input_types,omitempty"`
	Options     []string    `json:"options,omitempty"`
	Default     any         `json:"value,omitempty"`
	Advanced    bool        `json:"advanced"`
	Multiline   bool        `json:"multiline,omitempty"`
	Password    bool        `json:"password,omitempty"`
	Required    bool        `json:"required,omitempty"`
	List        bool        `json:"list,omitempty"`
}

type Schema struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon,omitempty"`
	Fields      []Field      `json:"build_config"`
	Outputs     []OutputKind `json:"output_types"`
}

// Field returns the named field descriptor.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type Component interface {
	Schema() Schema
	Build(ctx context.Context, params Params) (Output, error)
}

// Params are the raw values the host passes to Build, keyed by field name.
type Params map[string]any

// Decode copies params into out, keeping values already set on out for keys
// that are absent. Unknown keys are rejected.
func Decode(params Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

type OutputKind string

const (
	OutputText       OutputKind = "Text"
	OutputRecord     OutputKind = "Record"
	OutputRetriever  OutputKind = "Retriever"
	OutputEmbeddings OutputKind = "Embeddings"
)

// Output is the tagged result of a build; exactly one payload matches Kind.
type Output struct {
	Kind       OutputKind
	Text       string
	Record     *schema.Record
	Retriever  vectorstore.Retriever
	Embeddings vectorstore.Embedder
}

func TextOutput(s string) Output { return Output{Kind: OutputText, Text: s} }

func RecordOutput(r *schema.Record) Output { return Output{Kind: OutputRecord, Record: r} }

func RetrieverOutput(r vectorstore.Retriever) Output {
	return Output{Kind: OutputRetriever, Retriever: r}
}

func EmbeddingsOutput(e vectorstore.Embedder) Output {
	return Output{Kind: OutputEmbeddings, Embeddings: e}
}

// Value unwraps the payload so it can be fed into another component's params.
func (o Output) Value() any {
	switch o.Kind {
	case OutputText:
		return o.Text
	case OutputRecord:
		return o.Record
	case OutputRetriever:
		return o.Retriever
	case OutputEmbeddings:
		return o.Embeddings
	}
	return nil
}
