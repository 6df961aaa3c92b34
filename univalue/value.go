// Package univalue models provider responses as an order preserving tree of
// null, scalar, array and object values, independent of the wire format they
// arrived in.
//
// Lookups never fail. A missing key or out of range index yields Missing,
// which reports false from HasValue and renders as an empty string, so
// optional fields can be chained:
//
//	name := v.Get("data").Get("user").Get("name").String()
package univalue

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/cases"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	Invalid Kind = iota // No value, the result of a failed lookup.
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
		return "invalid"
	}
}

// Value is an immutable node in a response tree. The zero value is Missing.
type Value struct {
	kind Kind
	str  string // string contents, raw number text or "true"/"false"
	arr  []Value
	obj  *orderedmap.OrderedMap[string, Value]
}

// Member is a key/value pair used to construct objects.
type Member struct {
	Key   string
	Value Value
}

var (
	// Missing is returned for lookups that find nothing.
	Missing = Value{}

	// NullValue is an explicit null.
	NullValue = Value{kind: Null}
)

// NewString returns a string value.
func NewString(s string) Value {
	return Value{kind: String, str: s}
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{kind: Bool, str: strconv.FormatBool(b)}
}

// NewNumber returns a numeric value from any integer, float or numeric string.
// Anything else, including NaN, infinities and booleans, yields NullValue.
func NewNumber(n interface{}) Value {
	if _, ok := n.(bool); ok {
		return NullValue
	}
	f, err := cast.ToFloat64E(n)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue
	}
	s := cast.ToString(n)
	if _, ok := n.(string); ok && !json.Valid([]byte(s)) {
		return NullValue
	}
	return Value{kind: Number, str: s}
}

// NewArray returns an array holding items in order.
func NewArray(items ...Value) Value {
	return Value{kind: Array, arr: append([]Value(nil), items...)}
}

// NewObject returns an object with members in the given order. Later
// duplicates replace the value but keep the first position.
func NewObject(members ...Member) Value {
	m := orderedmap.New[string, Value](len(members))
	for _, member := range members {
		m.Set(member.Key, member.Value)
	}
	return Value{kind: Object, obj: m}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind {
	return v.kind
}

// HasValue reports whether v holds something other than missing or null.
func (v Value) HasValue() bool {
	return v.kind != Invalid && v.kind != Null
}

// IsNull reports whether v is an explicit null.
func (v Value) IsNull() bool {
	return v.kind == Null
}

// Get returns the member named key. When no member matches exactly the first
// case-insensitive match is returned, some providers are inconsistent about
// key casing.
func (v Value) Get(key string) Value {
	if v.kind != Object {
		return Missing
	}
	if item, ok := v.obj.Get(key); ok {
		return item
	}
	fold := cases.Fold()
	want := fold.String(key)
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		if fold.String(pair.Key) == want {
			return pair.Value
		}
	}
	return Missing
}

// Index returns the i'th array element, or Missing when out of range.
func (v Value) Index(i int) Value {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Missing
	}
	return v.arr[i]
}

// Path walks a dotted path such as "data.emails.0.value". Numeric segments
// index into arrays.
func (v Value) Path(path string) Value {
	if path == "" {
		return v
	}
	cur := v
	for _, segment := range strings.Split(path, ".") {
		if cur.kind == Array {
			i, err := strconv.Atoi(segment)
			if err != nil {
				return Missing
			}
			cur = cur.Index(i)
			continue
		}
		cur = cur.Get(segment)
	}
	return cur
}

// First returns the first of keys which holds a value.
func (v Value) First(keys ...string) Value {
	for _, key := range keys {
		if item := v.Get(key); item.HasValue() {
			return item
		}
	}
	return Missing
}

// Len returns the number of array elements or object members.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return v.obj.Len()
	default:
		return 0
	}
}

// Keys returns object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, v.obj.Len())
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Items returns a copy of the array elements.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return append([]Value(nil), v.arr...)
}

// Each calls fn for every object member in order until fn returns false.
func (v Value) Each(fn func(key string, item Value) bool) {
	if v.kind != Object {
		return
	}
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// String returns scalars as text and containers as compact JSON. Missing and
// null values return an empty string.
func (v Value) String() string {
	switch v.kind {
	case Invalid, Null:
		return ""
	case Bool, Number, String:
		return v.str
	default:
		b, _ := v.MarshalJSON()
		return string(b)
	}
}

// Int64E converts a scalar to an integer.
func (v Value) Int64E() (int64, error) {
	if v.kind == Number {
		if i, err := strconv.ParseInt(v.str, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(v.str, 64)
		return int64(f), err
	}
	return cast.ToInt64E(v.scalar())
}

// Int64 converts a scalar to an integer, returning 0 when it cannot.
func (v Value) Int64() int64 {
	i, _ := v.Int64E()
	return i
}

// Float64 converts a scalar to a float, returning 0 when it cannot.
func (v Value) Float64() float64 {
	return cast.ToFloat64(v.scalar())
}

// Bool converts a scalar to a boolean. "1", "t" and "true" are true.
func (v Value) Bool() bool {
	return cast.ToBool(v.scalar())
}

func (v Value) scalar() interface{} {
	switch v.kind {
	case Bool, Number, String:
		return v.str
	default:
		return nil
	}
}

// Equal compares v against a Go value or another Value, coercing scalars so
// that a numeric value equals the integer 1 and the string "1".
func (v Value) Equal(other interface{}) bool {
	switch o := other.(type) {
	case nil:
		return !v.HasValue()
	case Value:
		if v.kind == Number && o.kind == Number {
			return v.Float64() == o.Float64()
		}
		a, _ := v.MarshalJSON()
		b, _ := o.MarshalJSON()
		return bytes.Equal(a, b)
	case string:
		return v.HasValue() && v.String() == o
	case bool:
		if !v.HasValue() {
			return false
		}
		b, err := cast.ToBoolE(v.scalar())
		return err == nil && b == o
	}
	if v.kind != Number && v.kind != String {
		return false
	}
	want, err := cast.ToFloat64E(other)
	if err != nil {
		return false
	}
	got, err := cast.ToFloat64E(v.str)
	return err == nil && got == want
}

// Interface converts v into plain Go values: map[string]interface{},
// []interface{}, string, bool, int64, float64 or nil.
func (v Value) Interface() interface{} {
	switch v.kind {
	case Bool:
		return v.str == "true"
	case Number:
		if i, err := strconv.ParseInt(v.str, 10, 64); err == nil {
			return i
		}
		return v.Float64()
	case String:
		return v.str
	case Array:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]interface{}, v.obj.Len())
		for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = pair.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders v as compact JSON, keeping object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case Invalid, Null:
		buf.WriteString("null")
	case Bool, Number:
		buf.WriteString(v.str)
	case String:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		first := true
		for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			k, err := json.Marshal(pair.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := pair.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON parses JSON into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(JSON, data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
