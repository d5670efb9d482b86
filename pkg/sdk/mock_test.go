package patentscope

import (
	"context"
	"strings"
	"sync"
)

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

// keywordEmbedder places a text on three axes by keyword, so distances are predictable.
func keywordEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
		t := strings.ToLower(text)
		v := []float32{0, 0, 0}
		if strings.Contains(t, "battery") {
			v[0] = 1
		}
		if strings.Contains(t, "engine") {
			v[1] = 1
		}
		if strings.Contains(t, "display") {
			v[2] = 1
		}
		return EmbeddingResult{Embedding: v, PromptTokens: 2, TotalTokens: 2}, nil
	}}
}

type mockCompleter struct {
	mu    sync.Mutex
	calls []string // system prompts in call order
	fn    func(system string, messages []Message) (string, error)
}

func (m *mockCompleter) Complete(_ context.Context, system string, messages []Message, _ float32) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, system)
	m.mu.Unlock()
	return m.fn(system, messages)
}

type mockExecutor struct {
	statements []string
	records    []map[string]any
	err        error
}

func (m *mockExecutor) Execute(_ context.Context, statement string) ([]map[string]any, error) {
	m.statements = append(m.statements, statement)
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func record(num, abstract string) map[string]any {
	return map[string]any{
		"publication_number": num,
		"title":              "Title " + num,
		"abstract":           abstract,
		"publication_date":   int64(20210315),
		"ipc_codes":          "H01M10/0562",
		"assignees":          "TOYOTA MOTOR CORP",
	}
}
