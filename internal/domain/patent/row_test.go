package patent

import (
	"testing"
	"time"
)

func TestFromRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]any
		want Row
	}{
		{
			name: "integer date",
			rec: map[string]any{
				"publication_number": "US-2020123456-A1",
				"title":              "Battery",
				"abstract":           "A cell.",
				"publication_date":   int64(20200102),
				"ipc_codes":          "H01M10/05,H01M4/13",
				"assignees":          "PANASONIC CORP",
			},
			want: Row{
				PublicationNumber: "US-2020123456-A1",
				Title:             "Battery",
				Abstract:          "A cell.",
				PublicationDate:   "2020-01-02",
				IPCCodes:          "H01M10/05,H01M4/13",
				Assignees:         "PANASONIC CORP",
			},
		},
		{
			name: "string date and nulls",
			rec: map[string]any{
				"publication_number": "JP-2019000001-A",
				"title":              nil,
				"publication_date":   "20190315",
			},
			want: Row{PublicationNumber: "JP-2019000001-A", PublicationDate: "2019-03-15"},
		},
		{
			name: "iso date",
			rec:  map[string]any{"publication_number": "EP-1-A1", "publication_date": "2021-07-08"},
			want: Row{PublicationNumber: "EP-1-A1", PublicationDate: "2021-07-08"},
		},
		{
			name: "time value",
			rec: map[string]any{
				"publication_number": "EP-2-A1",
				"publication_date":   time.Date(2022, 5, 6, 0, 0, 0, 0, time.UTC),
			},
			want: Row{PublicationNumber: "EP-2-A1", PublicationDate: "2022-05-06"},
		},
		{
			name: "zero date",
			rec:  map[string]any{"publication_number": "EP-3-A1", "publication_date": int64(0)},
			want: Row{PublicationNumber: "EP-3-A1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromRecord(tt.rec)
			if err != nil {
				t.Fatalf("FromRecord: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromRecord_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]any
	}{
		{"missing number", map[string]any{"title": "x"}},
		{"bad date", map[string]any{"publication_number": "X", "publication_date": "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRecord(tt.rec); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFromRecords_KeepsOrder(t *testing.T) {
	rows, err := FromRecords([]map[string]any{
		{"publication_number": "B"},
		{"publication_number": "A"},
	})
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	if rows[0].PublicationNumber != "B" || rows[1].PublicationNumber != "A" {
		t.Errorf("order not preserved: %+v", rows)
	}

	if _, err := FromRecords([]map[string]any{{"publication_number": "A"}, {}}); err == nil {
		t.Error("expected error for row without publication number")
	}
}

func TestAbstracts(t *testing.T) {
	got := Abstracts([]Row{{Abstract: "a"}, {}, {Abstract: "c"}})
	if len(got) != 3 || got[0] != "a" || got[1] != "" || got[2] != "c" {
		t.Errorf("got %q", got)
	}
}
