package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
)

// Statement is a BigQuery Standard SQL query.
type Statement string

// DefaultLanguage is the localized title/abstract language used when TableShape leaves it empty.
const DefaultLanguage = "en"

var (
	tableRe    = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+){1,2}$`)
	languageRe = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]+)?$`)
)

// TableShape describes the publications table the statement reads.
type TableShape struct {
	// Table is a dataset.table or project.dataset.table reference.
	Table string
	// Language selects the localized title and abstract.
	Language string
}

// Compiler turns a SearchFilter into a Statement.
type Compiler struct {
	table    string
	language string
	rowLimit int
}

// NewCompiler validates the table shape and row cap.
func NewCompiler(shape TableShape, rowLimit int) (*Compiler, error) {
	if !tableRe.MatchString(shape.Table) {
		return nil, fmt.Errorf("invalid table reference %q", shape.Table)
	}
	lang := shape.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	if !languageRe.MatchString(lang) {
		return nil, fmt.Errorf("invalid language %q", lang)
	}
	if rowLimit <= 0 {
		return nil, fmt.Errorf("row limit must be positive, got %d", rowLimit)
	}
	return &Compiler{table: shape.Table, language: lang, rowLimit: rowLimit}, nil
}

// RowLimit returns the row cap every statement ends with.
func (c *Compiler) RowLimit() int { return c.rowLimit }

// Compile builds the statement for f. The result depends only on f and the compiler's configuration.
func (c *Compiler) Compile(f filter.SearchFilter) Statement {
	var b strings.Builder

	b.WriteString("SELECT\n")
	fmt.Fprintf(&b, "  p.publication_number AS %s,\n", patent.ColPublicationNumber)
	fmt.Fprintf(&b, "  %s AS %s,\n", c.localized("title_localized"), patent.ColTitle)
	fmt.Fprintf(&b, "  %s AS %s,\n", c.localized("abstract_localized"), patent.ColAbstract)
	fmt.Fprintf(&b, "  p.publication_date AS %s,\n", patent.ColPublicationDate)
	fmt.Fprintf(&b, "  STRING_AGG(DISTINCT ipc.code, ',') AS %s,\n", patent.ColIPCCodes)
	fmt.Fprintf(&b, "  STRING_AGG(DISTINCT assignee.name, ',') AS %s\n", patent.ColAssignees)
	fmt.Fprintf(&b, "FROM `%s` AS p\n", c.table)
	b.WriteString("LEFT JOIN UNNEST(p.ipc) AS ipc\n")
	b.WriteString("LEFT JOIN UNNEST(p.assignee_harmonized) AS assignee\n")
	fmt.Fprintf(&b, "WHERE p.publication_date >= %s\n", DateLiteral(f))
	fmt.Fprintf(&b, "  AND (%s)\n", IPCClause(f.IPCCodes()))
	fmt.Fprintf(&b, "  AND (%s)\n", AssigneeClause(f.Assignees()))
	fmt.Fprintf(&b, "GROUP BY %s, %s, %s, %s\n",
		patent.ColPublicationNumber, patent.ColTitle, patent.ColAbstract, patent.ColPublicationDate)
	fmt.Fprintf(&b, "LIMIT %d", c.rowLimit)

	return Statement(b.String())
}

func (c *Compiler) localized(column string) string {
	return fmt.Sprintf("(SELECT v.text FROM UNNEST(p.%s) AS v WHERE v.language = '%s' LIMIT 1)", column, c.language)
}

// IPCClause matches any of the code prefixes. An empty set is TRUE.
func IPCClause(codes []string) string {
	if len(codes) == 0 {
		return "TRUE"
	}
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = "ipc.code LIKE " + quote(escapeLike(code)+"%")
	}
	return strings.Join(parts, " OR ")
}

// AssigneeClause matches any of the names as a case-insensitive substring. An empty set is TRUE.
func AssigneeClause(names []string) string {
	if len(names) == 0 {
		return "TRUE"
	}
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = "LOWER(assignee.name) LIKE " + quote("%"+escapeLike(strings.ToLower(name))+"%")
	}
	return strings.Join(parts, " OR ")
}

// DateLiteral renders publication_from as the warehouse's YYYYMMDD integer.
func DateLiteral(f filter.SearchFilter) string {
	return f.PublicationFrom().Format("20060102")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// quote renders s as a single-quoted BigQuery string literal.
func quote(s string) string { return "'" + literalEscaper.Replace(s) + "'" }
