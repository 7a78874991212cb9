package workflow

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`^\{\{\s*([^#^/{}][^{}]*?)\s*\}\}$`)

// Render expands {{path}} placeholders and {{#key}}...{{/key}} sections
// against ctx. {{^key}}...{{/key}} emits its body when key is falsy.
// Unresolvable placeholders render as the empty string.
func Render(tpl string, ctx map[string]any) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}
	var b strings.Builder
	render(&b, tpl, ctx)
	return b.String()
}

func render(b *strings.Builder, tpl string, ctx map[string]any) {
	for {
		open := strings.Index(tpl, "{{")
		if open < 0 {
			b.WriteString(tpl)
			return
		}
		closeAt := strings.Index(tpl[open+2:], "}}")
		if closeAt < 0 {
			b.WriteString(tpl)
			return
		}
		b.WriteString(tpl[:open])
		tag := strings.TrimSpace(tpl[open+2 : open+2+closeAt])
		rest := tpl[open+2+closeAt+2:]

		switch {
		case tag == "":
		case tag[0] == '#' || tag[0] == '^':
			key := strings.TrimSpace(tag[1:])
			body, after, ok := section(rest, key)
			if !ok {
				// unterminated section: treat the rest as its body
				body, after = rest, ""
			}
			if Truthy(lookupValue(key, ctx)) == (tag[0] == '#') {
				render(b, body, ctx)
			}
			rest = after
		case tag[0] == '/':
		default:
			b.WriteString(Stringify(lookupValue(tag, ctx)))
		}
		tpl = rest
	}
}

// section splits s at the {{/key}} matching an already consumed {{#key}},
// honouring nested sections with the same key.
func section(s, key string) (body, rest string, ok bool) {
	depth := 0
	pos := 0
	for {
		open := strings.Index(s[pos:], "{{")
		if open < 0 {
			return "", "", false
		}
		open += pos
		closeAt := strings.Index(s[open+2:], "}}")
		if closeAt < 0 {
			return "", "", false
		}
		end := open + 2 + closeAt + 2
		tag := strings.TrimSpace(s[open+2 : open+2+closeAt])
		if len(tag) > 1 && (tag[0] == '#' || tag[0] == '^') && strings.TrimSpace(tag[1:]) == key {
			depth++
		} else if len(tag) > 1 && tag[0] == '/' && strings.TrimSpace(tag[1:]) == key {
			if depth == 0 {
				return s[:open], s[end:], true
			}
			depth--
		}
		pos = end
	}
}

// Lookup resolves a dot path against ctx. A leading "$" is ignored. Maps
// are traversed by key, with dotted keys matched whole; lists by index.
func Lookup(path string, ctx map[string]any) (any, bool) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return nil, false
	}
	return walk(ctx, strings.Split(path, "."))
}

func lookupValue(path string, ctx map[string]any) any {
	v, _ := Lookup(path, ctx)
	return v
}

func walk(cur any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return cur, true
	}
	switch node := cur.(type) {
	case map[string]any:
		for i := len(parts); i > 0; i-- {
			v, ok := node[strings.Join(parts[:i], ".")]
			if !ok {
				continue
			}
			if out, ok := walk(v, parts[i:]); ok {
				return out, true
			}
		}
		return nil, false
	case []any:
		if idx, ok := index(parts[0], len(node)); ok {
			return walk(node[idx], parts[1:])
		}
	case []string:
		if idx, ok := index(parts[0], len(node)); ok {
			return walk(node[idx], parts[1:])
		}
	case []map[string]any:
		if idx, ok := index(parts[0], len(node)); ok {
			return walk(node[idx], parts[1:])
		}
	}
	return nil, false
}

func index(s string, n int) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// Truthy reports whether v counts as set in a condition. Zero numbers of
// any width, empty collections and nil pointers are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "no", "0":
			return false
		}
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Truthy(rv.Elem().Interface())
	}
	return true
}

// Stringify renders a resolved value for text output. Maps and lists are
// written as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int64, bool:
		return asString(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return asString(v)
	}
	return string(data)
}

// Resolve renders a step input. Strings that are exactly one placeholder
// resolve to the raw value; other strings are rendered; maps and lists are
// resolved recursively.
func Resolve(v any, ctx map[string]any) any {
	switch t := v.(type) {
	case string:
		if m := placeholder.FindStringSubmatch(strings.TrimSpace(t)); m != nil {
			return lookupValue(m[1], ctx)
		}
		return Render(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Resolve(item, ctx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Resolve(item, ctx)
		}
		return out
	}
	return v
}

// Condition evaluates a when/until/condition expression. A bare path is
// looked up directly.
func Condition(expr any, ctx map[string]any) bool {
	s, ok := expr.(string)
	if !ok {
		return Truthy(expr)
	}
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "{{") {
		if v, found := Lookup(s, ctx); found {
			return Truthy(v)
		}
		b, err := strconv.ParseBool(s)
		return (err == nil && b) || strings.EqualFold(s, "yes")
	}
	return Truthy(Resolve(s, ctx))
}
