package patentscope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/patentscope/internal/config"
)

func baseConfig() config.Config {
	var c config.Config
	c.ApplyDefaults()
	return c
}

const filterReply = "```json\n" +
	`{"ipc_codes": ["H01M"], "assignees": ["Toyota"], "publication_from": "2020-01-01"}` +
	"\n```"

func pipelineCompleter() *mockCompleter {
	return &mockCompleter{fn: func(system string, messages []Message) (string, error) {
		if strings.HasPrefix(system, "Summarize") {
			return "  Short summary of: " + messages[0].Text + "  ", nil
		}
		return filterReply, nil
	}}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithFileStore(t.TempDir()),
		WithCompleter(pipelineCompleter()),
		WithEmbedder(keywordEmbedder()),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClient_Extract(t *testing.T) {
	c := newTestClient(t)

	f, drift, err := c.Extract(context.Background(), "battery patents from Toyota since 2020")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(f.IPCCodes) != 1 || f.IPCCodes[0] != "H01M" {
		t.Errorf("ipc codes = %v, want [H01M]", f.IPCCodes)
	}
	if len(f.Assignees) != 1 {
		t.Errorf("assignees = %v, want one", f.Assignees)
	}
	if got := f.PublicationFrom.Format(time.DateOnly); got != "2020-01-01" {
		t.Errorf("publication_from = %s, want 2020-01-01", got)
	}
	if len(drift) != 1 || drift[0].Kind != "code_fence" {
		t.Errorf("drift = %+v, want one code_fence", drift)
	}
}

func TestClient_Extract_Malformed(t *testing.T) {
	c := newTestClient(t, WithCompleter(&mockCompleter{fn: func(string, []Message) (string, error) {
		return "I cannot help with that", nil
	}}))

	_, _, err := c.Extract(context.Background(), "anything")
	if !errors.Is(err, ErrMalformedFilter) {
		t.Fatalf("expected ErrMalformedFilter, got %v", err)
	}
	var mf *MalformedFilterError
	if !errors.As(err, &mf) || mf.Raw != "I cannot help with that" {
		t.Errorf("malformed error = %+v", mf)
	}
}

func TestClient_Compile(t *testing.T) {
	c := newTestClient(t, WithTable("my-proj.pubs.publications", "en"), WithRowLimit(10))

	stmt, err := c.Compile(Filter{IPCCodes: []string{"G06F"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, want := range []string{"my-proj.pubs.publications", "G06F", "20150101", "LIMIT 10"} {
		if !strings.Contains(stmt, want) {
			t.Errorf("statement missing %q:\n%s", want, stmt)
		}
	}
}

func TestClient_Compile_Invalid(t *testing.T) {
	c := newTestClient(t)

	codes := make([]string, 65)
	for i := range codes {
		codes[i] = fmt.Sprintf("H%03d", i)
	}
	_, err := c.Compile(Filter{IPCCodes: codes})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClient_SearchIndexSimilar(t *testing.T) {
	exec := &mockExecutor{records: []map[string]any{
		record("US-1-A", "A solid-state battery with sulfide electrolyte."),
		record("US-2-B", "An engine control unit."),
		record("US-3-C", "A flexible display panel."),
	}}
	c := newTestClient(t, WithExecutor(exec))
	ctx := context.Background()

	res, err := c.Search(ctx, "battery patents from Toyota since 2020")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(exec.statements) != 1 || exec.statements[0] != res.Statement {
		t.Errorf("executed %v, want the planned statement", exec.statements)
	}
	if len(res.Patents) != 3 || res.Patents[0].PublicationNumber != "US-1-A" {
		t.Fatalf("patents = %+v", res.Patents)
	}
	if res.Patents[0].PublicationDate != "2021-03-15" {
		t.Errorf("publication date = %q, want 2021-03-15", res.Patents[0].PublicationDate)
	}

	stats, err := c.Index(ctx, res.Patents)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if stats.Rows != 3 || stats.Dimensions != 3 {
		t.Errorf("stats = %+v, want 3 rows of 3 dimensions", stats)
	}

	matches, err := c.Similar(ctx, "battery cathode", 2)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].PublicationNumber != "US-1-A" || matches[0].Distance != 0 {
		t.Errorf("nearest = %+v, want US-1-A at distance 0", matches[0])
	}
	if matches[1].Distance < matches[0].Distance {
		t.Error("matches must be ordered nearest first")
	}

	summary, err := c.Summarize(ctx, matches[0].Abstract)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "Short summary of: A solid-state battery with sulfide electrolyte." {
		t.Errorf("summary = %q", summary)
	}
}

func TestClient_SearchFilter_SkipsModel(t *testing.T) {
	llm := pipelineCompleter()
	exec := &mockExecutor{records: []map[string]any{record("EP-9-A1", "Battery.")}}
	c := newTestClient(t, WithCompleter(llm), WithExecutor(exec))

	res, err := c.SearchFilter(context.Background(), Filter{Assignees: []string{"Toyota"}})
	if err != nil {
		t.Fatalf("SearchFilter: %v", err)
	}
	if len(res.Patents) != 1 {
		t.Errorf("patents = %d, want 1", len(res.Patents))
	}
	if len(llm.calls) != 0 {
		t.Errorf("model called %d times, want 0", len(llm.calls))
	}
}

func TestClient_Search_NoExecutor(t *testing.T) {
	c := newTestClient(t)

	if _, err := c.Search(context.Background(), "battery"); err == nil {
		t.Fatal("expected error without a warehouse")
	}
}

func TestClient_Search_WarehouseFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := newTestClient(t, WithExecutor(&mockExecutor{err: boom}))

	_, err := c.Search(context.Background(), "battery")
	if !errors.Is(err, boom) {
		t.Fatalf("expected executor error, got %v", err)
	}
}

func TestClient_Search_EmptyText(t *testing.T) {
	c := newTestClient(t)

	if _, err := c.Search(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClient_Similar_NoIndex(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Similar(context.Background(), "battery", 3)
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestClient_Index_Empty(t *testing.T) {
	c := newTestClient(t)

	if _, err := c.Index(context.Background(), nil); !errors.Is(err, ErrNothingToIndex) {
		t.Fatalf("expected ErrNothingToIndex, got %v", err)
	}
}

func TestClient_Index_NoEmbedder(t *testing.T) {
	c, err := New(context.Background(), WithFileStore(t.TempDir()), WithCompleter(pipelineCompleter()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	_, err = c.Index(context.Background(), []Patent{{PublicationNumber: "US-1", Abstract: "battery"}})
	if !errors.Is(err, errNoEmbedder) {
		t.Fatalf("expected errNoEmbedder, got %v", err)
	}
}

func TestClient_Summarize_Failure(t *testing.T) {
	c := newTestClient(t, WithCompleter(&mockCompleter{fn: func(string, []Message) (string, error) {
		return "", errors.New("model overloaded")
	}}))

	if _, err := c.Summarize(context.Background(), "An abstract."); !errors.Is(err, ErrSummarization) {
		t.Fatalf("expected ErrSummarization, got %v", err)
	}
}

func TestClient_Summarize_Blank(t *testing.T) {
	llm := pipelineCompleter()
	c := newTestClient(t, WithCompleter(llm))

	out, err := c.Summarize(context.Background(), "")
	if err != nil || out != "" {
		t.Fatalf("Summarize(\"\") = %q, %v", out, err)
	}
	if len(llm.calls) != 0 {
		t.Error("blank text must not call the model")
	}
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t)

	h := c.Health(context.Background())
	if h.Status != "ok" {
		t.Errorf("status = %q, want ok", h.Status)
	}
	if h.Checks["storage"] != "ok" {
		t.Errorf("storage check = %q, want ok", h.Checks["storage"])
	}
	if _, ok := h.Checks["llm"]; ok {
		t.Error("llm check must be absent without WithOpenAI")
	}
	if !h.Healthy() {
		t.Error("Healthy() = false")
	}
	if h.Warehouse || !h.Embeddings {
		t.Errorf("warehouse=%v embeddings=%v, want false/true", h.Warehouse, h.Embeddings)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClient_Health_WithExecutor(t *testing.T) {
	c := newTestClient(t, WithExecutor(&mockExecutor{}))

	if h := c.Health(context.Background()); !h.Warehouse {
		t.Error("Warehouse = false with WithExecutor")
	}
}
