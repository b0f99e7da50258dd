package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolloop", "catalog")

// ErrArgument is returned when raw arguments do not match the declared
// parameters in count or type.
var ErrArgument = errors.New("invalid argument")

// Arguments holds coerced argument values in declared parameter order.
// It marshals to a JSON object.
type Arguments struct {
	*orderedmap.OrderedMap[string, any]
}

// NewArguments returns an empty argument set.
func NewArguments() *Arguments {
	return &Arguments{OrderedMap: orderedmap.New[string, any]()}
}

// Names returns the argument names in order.
func (a *Arguments) Names() []string {
	if a == nil || a.OrderedMap == nil {
		return nil
	}
	names := make([]string, 0, a.Len())
	for pair := a.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// MarshalJSON encodes the arguments as an object, nil as {}.
func (a *Arguments) MarshalJSON() ([]byte, error) {
	if a == nil || a.OrderedMap == nil {
		return []byte("{}"), nil
	}
	return a.OrderedMap.MarshalJSON()
}

// String renders the arguments as {a: 5, b: [1, 2, 3]}.
func (a *Arguments) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	if a != nil && a.OrderedMap != nil {
		first := true
		for pair := a.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(pair.Key)
			sb.WriteString(": ")
			sb.WriteString(FormatValue(pair.Value))
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// FormatValue renders a coerced value, slices as [1, 2, 3].
func FormatValue(v any) string {
	switch val := v.(type) {
	case []int64:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	}
	return fmt.Sprint(v)
}

type coerceOptions struct {
	strict bool
}

// CoerceOption configures Coerce.
type CoerceOption func(*coerceOptions)

// Strict makes surplus tokens an error instead of dropping them.
func Strict(strict bool) CoerceOption {
	return func(o *coerceOptions) {
		o.strict = strict
	}
}

// Coerce maps raw positional tokens onto the declared parameters of the
// tool, one token per parameter, in order.
func Coerce(td *ToolDescriptor, raw []string, opts ...CoerceOption) (*Arguments, error) {
	var o coerceOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(raw) < len(td.Parameters) {
		return nil, errors.WithMessagef(ErrArgument, "%s: expected %d arguments, got %d",
			td.Name, len(td.Parameters), len(raw))
	}
	if surplus := len(raw) - len(td.Parameters); surplus > 0 {
		if o.strict {
			return nil, errors.WithMessagef(ErrArgument, "%s: expected %d arguments, got %d",
				td.Name, len(td.Parameters), len(raw))
		}
		logger.KV(xlog.WARNING,
			"status", "surplus_arguments",
			"tool", td.Name,
			"dropped", raw[len(td.Parameters):],
		)
	}

	args := NewArguments()
	for i, p := range td.Parameters {
		v, err := coerceValue(p.Type, raw[i])
		if err != nil {
			return nil, errors.WithMessagef(ErrArgument, "%s: parameter %s: %s", td.Name, p.Name, err.Error())
		}
		args.Set(p.Name, v)
	}
	return args, nil
}

func coerceValue(t ParamType, raw string) (any, error) {
	switch t {
	case Integer:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errors.Errorf("%q is not an integer", raw)
		}
		return n, nil
	case Number:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.Errorf("%q is not a number", raw)
		}
		return f, nil
	case ArrayOfInteger:
		return parseIntegerArray(raw)
	}
	return raw, nil
}

func parseIntegerArray(raw string) ([]int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	list := []int64{}
	if strings.TrimSpace(s) == "" {
		return list, nil
	}
	for _, token := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil {
			return nil, errors.Errorf("%q is not an integer", token)
		}
		list = append(list, n)
	}
	return list, nil
}
