package obj

import (
	"encoding/json"
	"fmt"
)

// Document is a JSON document stored by the obj commands. The body is kept
// as raw JSON, so every codec stores it as an opaque byte string.
type Document struct {
	Key  string
	Body json.RawMessage

	meta json.RawMessage
}

func (d Document) Identifier() string { return d.Key }

func (d Document) Metadata() json.RawMessage { return d.meta }

func (d *Document) SetMetadata(meta json.RawMessage) { d.meta = meta }

// documentView is the printed form of a Document
type documentView struct {
	Key  string          `json:"key"`
	Body json.RawMessage `json:"body"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

func view(d Document) documentView {
	return documentView{Key: d.Key, Body: d.Body, Meta: d.meta}
}

// parseJSON returns s as raw JSON or an error naming what was parsed
func parseJSON(what, s string) (json.RawMessage, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("%s is not valid JSON: %s", what, s)
	}
	return json.RawMessage(s), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
