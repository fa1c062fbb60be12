package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the dynamic type every expression in the restricted language
// evaluates to: nil (None), bool, float64 (numbers — the fragments this
// sandbox runs do not need the int/float distinction Python makes),
// string, *List, or *Dict (the shape tool primitives return results in,
// e.g. run_command's {exit_code, stdout, stderr}).
type Value interface{}

// List is a mutable ordered sequence, the Value form of a Python list.
type List struct {
	Items []Value
}

// Dict is an insertion-ordered string-keyed map, the Value form of a
// Python dict — exactly what apply_patch/run_command hand back.
type Dict struct {
	keys   []string
	values map[string]Value
}

// NewDict builds a Dict from alternating key/value pairs, preserving
// insertion order the way tool primitives construct their results.
func NewDict(pairs ...interface{}) *Dict {
	d := &Dict{values: map[string]Value{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		k := pairs[i].(string)
		d.Set(k, pairs[i+1])
	}
	return d
}

func (d *Dict) Set(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Truthy mirrors Python's bool() coercion closely enough for the
// restricted subset's if/while conditions.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case *Dict:
		return len(x.keys) > 0
	default:
		return true
	}
}

// ToDisplay renders a Value the way Python's str()/print() would.
func ToDisplay(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case *List:
		parts := make([]string, len(x.Items))
		for i, it := range x.Items {
			parts[i] = ToRepr(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		parts := make([]string, 0, len(x.keys))
		for _, k := range x.keys {
			parts = append(parts, fmt.Sprintf("%q: %s", k, ToRepr(x.values[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// ToRepr is ToDisplay except strings are quoted, used inside list/dict
// rendering. Strings are double-quoted with Go escaping (strconv.Quote),
// so the text differs from Python's repr(), which uses single quotes.
func ToRepr(v Value) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return ToDisplay(v)
}
