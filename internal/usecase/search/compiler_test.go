package search

import (
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
)

const testTable = "patents-public-data.patents.publications"

func mustFilter(t *testing.T, codes, names []string, from time.Time) filter.SearchFilter {
	t.Helper()
	f, err := filter.New(codes, names, from)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	return f
}

func mustCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler(TableShape{Table: testTable}, 100)
	if err != nil {
		t.Fatalf("NewCompiler: %v", err)
	}
	return c
}

func TestNewCompiler_Validation(t *testing.T) {
	tests := []struct {
		name  string
		shape TableShape
		limit int
	}{
		{"empty table", TableShape{}, 10},
		{"injected table", TableShape{Table: "a.b`; DROP TABLE x"}, 10},
		{"bare table", TableShape{Table: "publications"}, 10},
		{"bad language", TableShape{Table: testTable, Language: "en'--"}, 10},
		{"zero limit", TableShape{Table: testTable}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCompiler(tt.shape, tt.limit); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCompile_EmptyDimensionsAreTautologies(t *testing.T) {
	c := mustCompiler(t)
	stmt := string(c.Compile(mustFilter(t, nil, nil, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))))

	if strings.Count(stmt, "AND (TRUE)") != 2 {
		t.Errorf("expected two TRUE clauses:\n%s", stmt)
	}
	if strings.Contains(stmt, "LIKE") {
		t.Errorf("unexpected LIKE in unfiltered statement:\n%s", stmt)
	}
}

func TestCompile_DateIsEightDigitInteger(t *testing.T) {
	c := mustCompiler(t)
	stmt := string(c.Compile(mustFilter(t, nil, nil, time.Date(2018, 3, 7, 0, 0, 0, 0, time.UTC))))
	if !strings.Contains(stmt, "p.publication_date >= 20180307\n") {
		t.Errorf("date clause missing:\n%s", stmt)
	}
}

func TestCompile_ClausesAndLimit(t *testing.T) {
	c := mustCompiler(t)
	f := mustFilter(t, []string{"H01M", "H01G"}, []string{"Panasonic", "Toyota Motor"},
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	stmt := string(c.Compile(f))

	for _, want := range []string{
		"AND (ipc.code LIKE 'H01M%' OR ipc.code LIKE 'H01G%')",
		"AND (LOWER(assignee.name) LIKE '%panasonic%' OR LOWER(assignee.name) LIKE '%toyota motor%')",
		"FROM `" + testTable + "` AS p",
		"LEFT JOIN UNNEST(p.ipc) AS ipc",
		"LEFT JOIN UNNEST(p.assignee_harmonized) AS assignee",
		"STRING_AGG(DISTINCT ipc.code, ',') AS ipc_codes",
		"STRING_AGG(DISTINCT assignee.name, ',') AS assignees",
		"WHERE v.language = 'en'",
		"GROUP BY publication_number, title, abstract, publication_date",
	} {
		if !strings.Contains(stmt, want) {
			t.Errorf("missing %q in:\n%s", want, stmt)
		}
	}
	if !strings.HasSuffix(stmt, "LIMIT 100") {
		t.Errorf("statement must end with the row cap:\n%s", stmt)
	}
}

func TestCompile_Language(t *testing.T) {
	c, err := NewCompiler(TableShape{Table: testTable, Language: "ja"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	stmt := string(c.Compile(mustFilter(t, nil, nil, time.Now())))
	if strings.Count(stmt, "v.language = 'ja'") != 2 {
		t.Errorf("language not applied:\n%s", stmt)
	}
}

func TestCompile_IsPure(t *testing.T) {
	c := mustCompiler(t)
	f := mustFilter(t, []string{"G06F"}, []string{"IBM"}, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
	if c.Compile(f) != c.Compile(f) {
		t.Error("Compile must be deterministic")
	}
}

func TestClauses_Escaping(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"quote", AssigneeClause([]string{"O'Reilly"}), `LOWER(assignee.name) LIKE '%o\'reilly%'`},
		{"percent", AssigneeClause([]string{"100%"}), `LOWER(assignee.name) LIKE '%100\\%%'`},
		{"underscore", IPCClause([]string{"H01_"}), `ipc.code LIKE 'H01\\_%'`},
		{"backslash", IPCClause([]string{`A\B`}), `ipc.code LIKE 'A\\\\B%'`},
		{"newline", AssigneeClause([]string{"a\nb"}), `LOWER(assignee.name) LIKE '%a\nb%'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got  %s\nwant %s", tt.got, tt.want)
			}
		})
	}
}
