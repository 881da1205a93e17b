// Package token finds, labels and substitutes {{name}} placeholders in text
// and URLs. Everything here is pure and never fails.
package token

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var pattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Find returns the token names in text in order of appearance, duplicates
// included.
func Find(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m[1]
	}
	return names
}

// Has reports whether text contains at least one token.
func Has(text string) bool {
	return pattern.MatchString(text)
}

// Unique returns the distinct names in first-appearance order.
func Unique(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Substitute replaces every {{name}} with its value. A token whose value is
// absent or empty stays in the text literally.
func Substitute(text string, values map[string]any) string {
	if len(values) == 0 || !Has(text) {
		return text
	}
	return pattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[2 : len(m)-2]
		s, ok := Value(values, name)
		if !ok {
			return m
		}
		return s
	})
}

// Value returns the stringified value for name and whether it counts as
// present. Nil, empty strings and false are missing; zero is a value.
func Value(values map[string]any, name string) (string, bool) {
	v, ok := values[name]
	if !ok || v == nil {
		return "", false
	}
	if b, isBool := v.(bool); isBool && !b {
		return "", false
	}
	s := stringify(v)
	if s == "" {
		return "", false
	}
	return s, true
}

// Missing returns the required names lacking a usable value, in order.
func Missing(required []string, values map[string]any) []string {
	var missing []string
	for _, name := range Unique(required) {
		if _, ok := Value(values, name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Label derives a human-readable label from a snake_case or camelCase name:
// "company_name" -> "Company Name", "productImage" -> "Product Image".
func Label(name string) string {
	if strings.Contains(name, "_") {
		parts := strings.Split(name, "_")
		for i, p := range parts {
			parts[i] = capitalize(p)
		}
		return strings.Join(parts, " ")
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(capitalize(b.String()))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
