package dom

import (
	"strconv"
	"strings"
)

// declaration is one "prop: value" pair of an inline style attribute.
type declaration struct {
	prop  string
	value string
}

func parseStyle(s string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		decls = append(decls, declaration{prop: prop, value: value})
	}
	return decls
}

func formatStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.value)
	}
	return strings.Join(parts, "; ")
}

// withStyle returns decls with prop set to value, or removed when value is empty.
// Declaration order is preserved.
func withStyle(decls []declaration, prop, value string) []declaration {
	prop = strings.ToLower(prop)
	for i, d := range decls {
		if d.prop != prop {
			continue
		}
		if value == "" {
			return append(decls[:i], decls[i+1:]...)
		}
		decls[i].value = value
		return decls
	}
	if value == "" {
		return decls
	}
	return append(decls, declaration{prop: prop, value: value})
}

func styleValue(decls []declaration, prop string) string {
	prop = strings.ToLower(prop)
	for _, d := range decls {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

// ParsePixels parses a CSS length like "15px" or "15". Empty or invalid
// values yield 0.
func ParsePixels(v string) int {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// Pixels formats n as a CSS pixel length.
func Pixels(n int) string {
	return strconv.Itoa(n) + "px"
}
