package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

// DriftKind names a tolerated shape variation in extractor output.
type DriftKind string

const (
	// DriftCodeFence: the JSON object was wrapped in a Markdown code fence.
	DriftCodeFence DriftKind = "code_fence"
	// DriftMappingFlattened: a key->value object was flattened to its values in document order.
	DriftMappingFlattened DriftKind = "mapping_flattened"
	// DriftNullValue: a list field was null and treated as empty.
	DriftNullValue DriftKind = "null_value"
	// DriftDefaulted: publication_from was missing or unparseable and the default was used.
	DriftDefaulted DriftKind = "defaulted"
)

// SchemaDrift is a warning about a normalized field. It never loses values.
type SchemaDrift struct {
	Field string    `json:"field"`
	Kind  DriftKind `json:"kind"`
}

var dateLayouts = []string{"2006-01-02", "20060102", "2006/01/02", time.RFC3339}

// Parse turns raw extractor output into a SearchFilter.
// Malformed output yields a *domain.MalformedFilterError carrying raw.
func Parse(raw string, defaultFrom time.Time) (SearchFilter, []SchemaDrift, error) {
	var drift []SchemaDrift

	body, fenced := stripCodeFence(raw)
	if fenced {
		drift = append(drift, SchemaDrift{Kind: DriftCodeFence})
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return SearchFilter{}, nil, domain.NewMalformedFilter(raw, "not a JSON object: "+err.Error())
	}
	if obj == nil {
		return SearchFilter{}, nil, domain.NewMalformedFilter(raw, "not a JSON object")
	}

	codes, d, err := stringList(obj, FieldIPCCodes, true)
	if err != nil {
		return SearchFilter{}, nil, domain.NewMalformedFilter(raw, err.Error())
	}
	drift = append(drift, d...)

	names, d, err := stringList(obj, FieldAssignees, false)
	if err != nil {
		return SearchFilter{}, nil, domain.NewMalformedFilter(raw, err.Error())
	}
	drift = append(drift, d...)

	from, ok := parseDate(obj[FieldPublicationFrom])
	if !ok {
		from = defaultFrom
		drift = append(drift, SchemaDrift{Field: FieldPublicationFrom, Kind: DriftDefaulted})
	}

	f, err := New(codes, names, from)
	if err != nil {
		return SearchFilter{}, nil, domain.NewMalformedFilter(raw, err.Error())
	}
	return f, drift, nil
}

func stripCodeFence(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	// Drop the opening fence line (``` or ```json).
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s, false
	}
	s = strings.TrimSpace(s[nl+1:])
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s), true
}

func stringList(obj map[string]json.RawMessage, field string, allowMapping bool) ([]string, []SchemaDrift, error) {
	raw, ok := obj[field]
	if !ok {
		return nil, nil, fmt.Errorf("missing required key %q", field)
	}
	raw = bytes.TrimSpace(raw)

	switch {
	case bytes.Equal(raw, []byte("null")):
		return nil, []SchemaDrift{{Field: field, Kind: DriftNullValue}}, nil
	case len(raw) > 0 && raw[0] == '[':
		var out []string
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, nil, fmt.Errorf("%s must be a list of strings", field)
		}
		return out, nil, nil
	case len(raw) > 0 && raw[0] == '{' && allowMapping:
		out, err := orderedValues(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", field, err)
		}
		return out, []SchemaDrift{{Field: field, Kind: DriftMappingFlattened}}, nil
	default:
		return nil, nil, fmt.Errorf("%s must be a list of strings", field)
	}
}

// orderedValues returns the string values of a JSON object in document order.
func orderedValues(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var out []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var v string
		if err := dec.Decode(&v); err != nil {
			return nil, errors.New("mapping values must be strings")
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDate(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
