// Package prompt provides typed prompt templates with {name} placeholders.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the value type a placeholder accepts.
type Kind string

const (
	// String accepts a string value.
	String Kind = "string"
	// Int accepts any Go integer value.
	Int Kind = "int"
	// Date accepts a time.Time and renders it as YYYY-MM-DD.
	Date Kind = "date"
)

var placeholderRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Template is a prompt with declared, typed placeholders.
type Template struct {
	name   string
	text   string
	params map[string]Kind
}

// New validates that every placeholder in text is declared in params.
// Declared parameters that the text does not use are allowed.
func New(name, text string, params map[string]Kind) (Template, error) {
	if strings.TrimSpace(text) == "" {
		return Template{}, fmt.Errorf("prompt %q is empty", name)
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if _, ok := params[m[1]]; !ok {
			return Template{}, fmt.Errorf("prompt %q: undeclared placeholder {%s}", name, m[1])
		}
	}
	for p, k := range params {
		switch k {
		case String, Int, Date:
		default:
			return Template{}, fmt.Errorf("prompt %q: placeholder %q has unknown kind %q", name, p, k)
		}
	}
	cp := make(map[string]Kind, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Template{name: name, text: text, params: cp}, nil
}

// MustNew is New that panics on error.
func MustNew(name, text string, params map[string]Kind) Template {
	t, err := New(name, text, params)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t Template) Name() string { return t.name }

// Declares reports whether name is a declared placeholder.
func (t Template) Declares(name string) bool {
	_, ok := t.params[name]
	return ok
}

// Render substitutes values. Every declared placeholder must be supplied with a value of its kind;
// unknown keys are rejected.
func (t Template) Render(values map[string]any) (string, error) {
	rendered := make(map[string]string, len(t.params))

	for _, p := range t.paramNames() {
		v, ok := values[p]
		if !ok {
			return "", fmt.Errorf("prompt %q: missing value for {%s}", t.name, p)
		}
		s, err := format(t.params[p], v)
		if err != nil {
			return "", fmt.Errorf("prompt %q: {%s}: %w", t.name, p, err)
		}
		rendered[p] = s
	}
	for k := range values {
		if _, ok := t.params[k]; !ok {
			return "", fmt.Errorf("prompt %q: unknown placeholder %q", t.name, k)
		}
	}

	return placeholderRe.ReplaceAllStringFunc(t.text, func(m string) string {
		return rendered[m[1:len(m)-1]]
	}), nil
}

func (t Template) paramNames() []string {
	names := make([]string, 0, len(t.params))
	for p := range t.params {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

func format(k Kind, v any) (string, error) {
	switch k {
	case String:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case Int:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), nil
		case int32:
			return strconv.FormatInt(int64(n), 10), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		default:
			return "", fmt.Errorf("want int, got %T", v)
		}
	case Date:
		d, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("want time.Time, got %T", v)
		}
		if d.IsZero() {
			return "", fmt.Errorf("zero date")
		}
		return d.Format("2006-01-02"), nil
	default:
		return "", fmt.Errorf("unknown kind %q", k)
	}
}
