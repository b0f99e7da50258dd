package json

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

type Encoder struct {
	indent string
}

func NewEncoder() *Encoder {
	return &Encoder{indent: "  "}
}

// WithIndent sets the indentation, empty for compact output.
func (e *Encoder) WithIndent(indent string) *Encoder {
	e.indent = indent
	return e
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", e.indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return json.Unmarshal(bytes.TrimSpace(bs), ret)
}

func (e *Encoder) Validate(req any) error {
	validate := validator.New()
	return validate.Struct(req)
}
