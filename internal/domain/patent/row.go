// Package patent holds the result row produced by a warehouse query.
package patent

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date layout used for publication dates.
const DateLayout = "2006-01-02"

// Column names of a result row, shared by the SQL projection and the mapping file.
const (
	ColPublicationNumber = "publication_number"
	ColTitle             = "title"
	ColAbstract          = "abstract"
	ColPublicationDate   = "publication_date"
	ColIPCCodes          = "ipc_codes"
	ColAssignees         = "assignees"
)

// Row is one publication returned by a search. PublicationNumber is the unique key.
type Row struct {
	PublicationNumber string `json:"publication_number"`
	Title             string `json:"title"`
	Abstract          string `json:"abstract"`
	PublicationDate   string `json:"publication_date"`
	IPCCodes          string `json:"ipc_codes"`
	Assignees         string `json:"assignees"`
}

// Match is a row returned by a similarity query with its squared L2 distance.
type Match struct {
	Row      Row     `json:"row"`
	Distance float32 `json:"distance"`
}

// FromRecord converts a warehouse record into a Row.
// Missing or null text columns become empty strings; the publication number is required.
func FromRecord(rec map[string]any) (Row, error) {
	num := stringValue(rec[ColPublicationNumber])
	if num == "" {
		return Row{}, fmt.Errorf("record has no %s", ColPublicationNumber)
	}

	date, err := normalizeDate(rec[ColPublicationDate])
	if err != nil {
		return Row{}, fmt.Errorf("record %s: %w", num, err)
	}

	return Row{
		PublicationNumber: num,
		Title:             stringValue(rec[ColTitle]),
		Abstract:          stringValue(rec[ColAbstract]),
		PublicationDate:   date,
		IPCCodes:          stringValue(rec[ColIPCCodes]),
		Assignees:         stringValue(rec[ColAssignees]),
	}, nil
}

// FromRecords converts a full result set, preserving order.
func FromRecords(recs []map[string]any) ([]Row, error) {
	rows := make([]Row, 0, len(recs))
	for i, rec := range recs {
		row, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Abstracts returns the abstract of every row in order, empty for rows without one.
func Abstracts(rows []Row) []string {
	out := make([]string, len(rows))
	for i := range rows {
		out[i] = rows[i].Abstract
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// normalizeDate accepts the warehouse's integer YYYYMMDD encoding as well as ISO strings.
func normalizeDate(v any) (string, error) {
	var raw string
	switch t := v.(type) {
	case nil:
		return "", nil
	case int64:
		raw = strconv.FormatInt(t, 10)
	case int:
		raw = strconv.Itoa(t)
	case float64:
		raw = strconv.FormatInt(int64(t), 10)
	case time.Time:
		return t.Format(DateLayout), nil
	default:
		raw = strings.TrimSpace(stringValue(t))
	}

	if raw == "" || raw == "0" {
		return "", nil
	}
	if d, err := time.Parse("20060102", raw); err == nil {
		return d.Format(DateLayout), nil
	}
	if d, err := time.Parse(DateLayout, raw); err == nil {
		return d.Format(DateLayout), nil
	}
	return "", fmt.Errorf("invalid %s %q", ColPublicationDate, raw)
}
