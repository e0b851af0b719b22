// Package payload models untrusted JSON documents as a tagged-union tree.
//
// Every accessor is fail-soft: asking an object for a key it does not have
// or reading a number as a string yields the absent Value instead of an
// error or a panic. Callers decide what absence means.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// Missing is the zero Kind: the path did not exist.
	Missing Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "missing"
	}
}

// Value is an immutable JSON tree node. The zero Value is Missing.
type Value struct {
	kind Kind
	b    bool
	n    json.Number
	s    string
	a    []Value
	o    map[string]Value
}

// ErrTrailingData is returned by Parse when the input holds more than one document.
var ErrTrailingData = errors.New("payload: trailing data after JSON document")

// Parse decodes a single JSON document. Numbers keep their literal text.
func Parse(data []byte) (Value, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("payload: decode: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Value{}, ErrTrailingData
	}

	return FromAny(raw), nil
}

// FromAny converts the output of a generic JSON decode (nil, bool, float64,
// json.Number, string, []any, map[string]any) into a Value. Go types outside
// that set become Missing.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Value{kind: Null}
	case bool:
		return Value{kind: Bool, b: x}
	case json.Number:
		return Value{kind: Number, n: x}
	case float64:
		return Value{kind: Number, n: json.Number(strconv.FormatFloat(x, 'g', -1, 64))}
	case int:
		return Value{kind: Number, n: json.Number(strconv.Itoa(x))}
	case int64:
		return Value{kind: Number, n: json.Number(strconv.FormatInt(x, 10))}
	case string:
		return Value{kind: String, s: x}
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromAny(item)
		}
		return Value{kind: Array, a: items}
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fields[k] = FromAny(item)
		}
		return Value{kind: Object, o: fields}
	default:
		return Value{}
	}
}

func (v Value) Kind() Kind { return v.kind }

// IsNullish reports whether the node is missing or null.
func (v Value) IsNullish() bool { return v.kind == Missing || v.kind == Null }

// Get returns the named member of an object, or Missing.
func (v Value) Get(key string) Value {
	if v.kind != Object {
		return Value{}
	}
	return v.o[key]
}

// Path walks nested objects, returning Missing at the first gap.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
		if cur.kind == Missing {
			return cur
		}
	}
	return cur
}

// Len is the number of array elements or object members; 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.a)
	case Object:
		return len(v.o)
	default:
		return 0
	}
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == String
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == Bool
}

// AsInt64 succeeds only for numbers with an exact integer representation.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != Number {
		return 0, false
	}
	n, err := v.n.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// Coalesce returns the first value that is neither missing nor null.
func Coalesce(values ...Value) Value {
	for _, v := range values {
		if !v.IsNullish() {
			return v
		}
	}
	return Value{}
}
