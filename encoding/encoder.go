// Package encoding renders session reports as text, JSON, YAML or TOML.
package encoding

import (
	"strings"

	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/toolloop/encoding/json"
	tomlenc "github.com/effective-security/toolloop/encoding/toml"
	yamlenc "github.com/effective-security/toolloop/encoding/yaml"
)

type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal([]byte, any) error
}

type Validator interface {
	Validate(any) error
}

type Mode = string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
	ModeTOML Mode = "toml"
)

// ModeDefault is the default mode for the encoder.
// Allow to override in apps
var ModeDefault = ModeText

// Modes lists the supported modes
var Modes = []Mode{ModeText, ModeJSON, ModeYAML, ModeTOML}

// PredefinedEncoder returns the encoder for the mode, case insensitive.
func PredefinedEncoder(mode Mode) (Encoder, error) {
	switch strings.ToLower(mode) {
	case ModeText, "":
		return &textEncoder{}, nil
	case ModeJSON:
		return jsonenc.NewEncoder(), nil
	case ModeYAML:
		return yamlenc.NewEncoder(), nil
	case ModeTOML:
		return tomlenc.NewEncoder(), nil
	}
	return nil, errors.Errorf("unsupported format %q, expected one of: %s", mode, strings.Join(Modes, ", "))
}

// Encode validates and marshals the report.
func Encode(mode Mode, r *Report) ([]byte, error) {
	enc, err := PredefinedEncoder(mode)
	if err != nil {
		return nil, err
	}
	if v, ok := enc.(Validator); ok {
		if err := v.Validate(r); err != nil {
			return nil, errors.Wrap(err, "failed to validate")
		}
	}
	bs, err := enc.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode")
	}
	return bs, nil
}

// Decode parses a report produced by Encode in a structured mode.
func Decode(mode Mode, data []byte) (*Report, error) {
	enc, err := PredefinedEncoder(mode)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := enc.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "failed to decode")
	}
	return &r, nil
}

var (
	_ Encoder = (*textEncoder)(nil)
	_ Encoder = (*jsonenc.Encoder)(nil)
	_ Encoder = (*tomlenc.Encoder)(nil)
	_ Encoder = (*yamlenc.Encoder)(nil)

	_ Validator = (*jsonenc.Encoder)(nil)
	_ Validator = (*tomlenc.Encoder)(nil)
	_ Validator = (*yamlenc.Encoder)(nil)
)
