package bigquery

import (
	"fmt"
	"math"
	"strconv"
	"time"

	bq "google.golang.org/api/bigquery/v2"
)

// convertRow maps a REST row onto column names, decoding scalar cells by their schema type.
// NULL cells become nil.
func convertRow(fields []*bq.TableFieldSchema, row *bq.TableRow) (map[string]any, error) {
	if len(row.F) != len(fields) {
		return nil, fmt.Errorf("row has %d cells, schema has %d fields", len(row.F), len(fields))
	}
	out := make(map[string]any, len(fields))
	for i, f := range fields {
		v, err := convertValue(f, row.F[i].V)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func convertValue(f *bq.TableFieldSchema, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Mode == "REPEATED" {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("repeated value is %T", v)
		}
		elem := *f
		elem.Mode = "NULLABLE"
		out := make([]any, 0, len(items))
		for _, it := range items {
			cell, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("repeated element is %T", it)
			}
			cv, err := convertValue(&elem, cell["v"])
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	}

	if f.Type == "RECORD" || f.Type == "STRUCT" {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record value is %T", v)
		}
		cells, _ := rec["f"].([]any)
		row := &bq.TableRow{F: make([]*bq.TableCell, len(cells))}
		for i, c := range cells {
			m, _ := c.(map[string]any)
			row.F[i] = &bq.TableCell{V: m["v"]}
		}
		return convertRow(f.Fields, row)
	}

	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("scalar value is %T", v)
	}
	switch f.Type {
	case "INTEGER", "INT64":
		return strconv.ParseInt(s, 10, 64)
	case "FLOAT", "FLOAT64":
		return strconv.ParseFloat(s, 64)
	case "BOOLEAN", "BOOL":
		return strconv.ParseBool(s)
	case "TIMESTAMP":
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	default:
		// STRING, DATE, DATETIME, NUMERIC and friends stay textual.
		return s, nil
	}
}
