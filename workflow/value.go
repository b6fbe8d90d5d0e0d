package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind 标识 Value 当前承载的变体
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a tagged union of the value shapes a state key may hold.
// The zero Value is invalid and is rejected by State.Merge.
type Value struct {
	kind   Kind
	str    string
	num    int64
	record map[string]Value
	list   []Value
}

// String 构造字符串值
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int 构造整数值
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Record 构造记录值，入参会被复制
func Record(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindRecord, record: cp}
}

// List 构造列表值，入参会被复制
func List(vs ...Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindList, list: cp}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v carries a variant.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsRecord() (map[string]Value, bool) {
	if v.kind != KindRecord {
		return nil, false
	}
	cp := make(map[string]Value, len(v.record))
	for k, e := range v.record {
		cp[k] = e
	}
	return cp, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindRecord:
		if len(v.record) != len(o.record) {
			return false
		}
		for k, e := range v.record {
			oe, ok := o.record[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Native converts the value into plain Go types (string, int64,
// map[string]any, []any). Used for JSON and persistence.
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindRecord:
		m := make(map[string]any, len(v.record))
		for k, e := range v.record {
			m[k] = e.Native()
		}
		return m
	case KindList:
		l := make([]any, len(v.list))
		for i, e := range v.list {
			l[i] = e.Native()
		}
		return l
	default:
		return nil
	}
}

// FromNative is the inverse of Native. Unsupported Go types yield an error.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float64:
		// JSON 数字
		if t != float64(int64(t)) {
			return Value{}, fmt.Errorf("non-integral number %v", t)
		}
		return Int(int64(t)), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromNative(e)
			if err != nil {
				return Value{}, fmt.Errorf("record key %q: %w", k, err)
			}
			m[k] = ev
		}
		return Value{kind: KindRecord, record: m}, nil
	case []any:
		l := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromNative(e)
			if err != nil {
				return Value{}, fmt.Errorf("list index %d: %w", i, err)
			}
			l[i] = ev
		}
		return Value{kind: KindList, list: l}, nil
	case []string:
		l := make([]Value, len(t))
		for i, e := range t {
			l[i] = String(e)
		}
		return Value{kind: KindList, list: l}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromNative(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// GoString renders a stable debug form, keys sorted.
func (v Value) GoString() string {
	var b strings.Builder
	v.writeTo(&b)
	return b.String()
}

func (v Value) writeTo(b *strings.Builder) {
	switch v.kind {
	case KindString:
		b.WriteString(strconv.Quote(v.str))
	case KindInt:
		b.WriteString(strconv.FormatInt(v.num, 10))
	case KindRecord:
		keys := make([]string, 0, len(v.record))
		for k := range v.record {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			v.record[k].writeTo(b)
		}
		b.WriteByte('}')
	case KindList:
		b.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeTo(b)
		}
		b.WriteByte(']')
	default:
		b.WriteString("<invalid>")
	}
}

// Option is an explicit present/absent wrapper returned by State.Lookup.
type Option struct {
	Value   Value
	Present bool
}

// Some wraps a present value.
func Some(v Value) Option { return Option{Value: v, Present: true} }

// None is the absent option.
func None() Option { return Option{} }

// OrElse returns the wrapped value or def when absent.
func (o Option) OrElse(def Value) Value {
	if o.Present {
		return o.Value
	}
	return def
}
