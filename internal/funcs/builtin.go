package funcs

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/lithammer/dedent"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuiltinModuleName is the name of the always-present module.
const BuiltinModuleName = "builtin"

// Builtin returns the module registered ahead of every other module.
func Builtin() Module {
	return MapModule{
		ModuleName: BuiltinModuleName,
		FuncMap: template.FuncMap{
			"lower":      func(s string) string { return cases.Lower(language.Und).String(s) },
			"upper":      func(s string) string { return cases.Upper(language.Und).String(s) },
			"title":      func(s string) string { return cases.Title(language.Und).String(s) },
			"camel":      func(s string) string { return camelCase(s, false) },
			"pascal":     func(s string) string { return camelCase(s, true) },
			"snake":      func(s string) string { return joinWords(s, "_") },
			"kebab":      func(s string) string { return joinWords(s, "-") },
			"trim":       strings.TrimSpace,
			"trimPrefix": func(prefix, s string) string { return strings.TrimPrefix(s, prefix) },
			"trimSuffix": func(suffix, s string) string { return strings.TrimSuffix(s, suffix) },
			"replace":    func(old, new, s string) string { return strings.ReplaceAll(s, old, new) },
			"contains":   func(substr, s string) bool { return strings.Contains(s, substr) },
			"hasPrefix":  func(prefix, s string) bool { return strings.HasPrefix(s, prefix) },
			"hasSuffix":  func(suffix, s string) bool { return strings.HasSuffix(s, suffix) },
			"split":      func(sep, s string) []string { return strings.Split(s, sep) },
			"join":       join,
			"repeat":     func(n int, s string) string { return strings.Repeat(s, n) },
			"indent":     indent,
			"dedent":     dedent.Dedent,
			"default":    defaultValue,
			"quote":      func(v interface{}) string { return fmt.Sprintf("%q", fmt.Sprint(v)) },
			"uuid":       func() string { return uuid.NewString() },
			"now":        time.Now,
			"date":       func(layout string, t time.Time) string { return t.Format(layout) },
			"seq":        seq,
		},
	}
}

// words splits on separators and lower-to-upper case boundaries.
func words(s string) []string {
	var out []string
	var cur []rune
	runes := []rune(s)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}

func camelCase(s string, upperFirst bool) string {
	parts := words(s)
	var b strings.Builder
	for i, w := range parts {
		w = strings.ToLower(w)
		if i == 0 && !upperFirst {
			b.WriteString(w)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func joinWords(s, sep string) string {
	parts := words(s)
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	return strings.Join(parts, sep)
}

func join(sep string, v interface{}) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Sprint(v)
	}
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}

func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

func defaultValue(def, v interface{}) interface{} {
	if v == nil {
		return def
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		if rv.Len() == 0 {
			return def
		}
	}
	return v
}

func seq(n int) []int {
	if n < 0 {
		n = 0
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
